// Package fetcher provides the HTTP client used for sitemaps, robots.txt,
// pages and documents.
//
// Requests look like a regular browser visit: a rotating User-Agent, the
// usual Accept headers and compressed transfer encodings. Per-domain cookies
// and headers from the site file are injected into every request, and all
// traffic can optionally be routed through a SOCKS5 proxy.
package fetcher
