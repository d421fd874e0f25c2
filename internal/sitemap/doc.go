// Package sitemap resolves a domain's sitemap into the seed list of a harvest.
//
// Both <urlset> documents and <sitemapindex> documents are understood. A
// sitemap index, or a <url> whose location ends in .xml, points at nested
// sitemaps which are expanded one level deep.
package sitemap
