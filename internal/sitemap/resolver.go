package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// Namespace is the sitemap protocol XML namespace. Elements outside it are ignored.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// maxSitemapSize caps a decompressed .xml.gz sitemap, the protocol's 50 MB limit.
const maxSitemapSize = 50 * 1024 * 1024

// candidatePaths are tried in order; the first usable document wins.
var candidatePaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

// Getter fetches a URL. *fetcher.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
}

// document matches both <urlset> and <sitemapindex> roots.
type document struct {
	URLs     []urlElement     `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 url"`
	Sitemaps []sitemapElement `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 sitemap"`
}

type urlElement struct {
	Loc        string `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 loc"`
	LastMod    string `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 lastmod"`
	ChangeFreq string `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 changefreq"`
	Priority   string `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 priority"`
}

type sitemapElement struct {
	Loc string `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 loc"`
}

// Resolver turns a domain into its list of sitemap entries.
type Resolver struct {
	getter        Getter
	timeout       time.Duration
	nestedTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the timeout of the top-level sitemap fetches.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithNestedTimeout sets the timeout of nested sitemap fetches.
func WithNestedTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.nestedTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver fetching through getter.
func NewResolver(getter Getter, opts ...Option) *Resolver {
	r := &Resolver{
		getter:        getter,
		timeout:       10 * time.Second,
		nestedTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve returns the deduplicated sitemap entries of domain.
//
// sitemap.xml is tried first, then sitemap_index.xml; the first response with
// status 200, an XML content type and a parseable body is used. <loc> values
// ending in .xml are nested sitemaps and are expanded one level deep. Entries
// are deduplicated by URL: the first occurrence fixes the position, the last
// one provides the metadata.
//
// Resolve never fails. Every problem is logged and yields fewer entries,
// possibly none.
func (r *Resolver) Resolve(ctx context.Context, domain string) []model.SitemapEntry {
	base, err := webaddr.Normalize(domain)
	if err != nil {
		r.logger.Error("invalid domain", "domain", domain, "error", err)
		return nil
	}
	origin, err := webaddr.Origin(base)
	if err != nil {
		r.logger.Error("invalid domain", "domain", domain, "error", err)
		return nil
	}

	for _, path := range candidatePaths {
		if ctx.Err() != nil {
			return nil
		}
		sitemapURL := origin + path
		doc, err := r.fetchDocument(ctx, sitemapURL, r.timeout, true)
		if err != nil {
			r.logger.Warn("sitemap unavailable", "url", sitemapURL, "error", err)
			continue
		}

		entries := r.collect(ctx, doc)
		r.logger.Info("sitemap resolved", "url", sitemapURL, "entries", len(entries))
		return dedupe(entries)
	}

	r.logger.Warn("no sitemap found", "domain", domain)
	return nil
}

// collect flattens a top-level document, expanding nested sitemaps.
func (r *Resolver) collect(ctx context.Context, doc *document) []model.SitemapEntry {
	var entries []model.SitemapEntry

	for _, u := range doc.URLs {
		loc, ok := normalizeLoc(u.Loc)
		if !ok {
			continue
		}
		if isNestedSitemap(loc) {
			entries = append(entries, r.expand(ctx, loc)...)
			continue
		}
		entries = append(entries, toEntry(loc, u))
	}

	for _, s := range doc.Sitemaps {
		loc, ok := normalizeLoc(s.Loc)
		if !ok {
			continue
		}
		entries = append(entries, r.expand(ctx, loc)...)
	}

	return entries
}

// expand fetches a nested sitemap and returns its <url> entries. Nested
// sitemaps inside it are not followed further.
func (r *Resolver) expand(ctx context.Context, nestedURL string) []model.SitemapEntry {
	doc, err := r.fetchDocument(ctx, nestedURL, r.nestedTimeout, false)
	if err != nil {
		r.logger.Warn("nested sitemap skipped", "url", nestedURL, "error", err)
		return nil
	}

	entries := make([]model.SitemapEntry, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		loc, ok := normalizeLoc(u.Loc)
		if !ok {
			continue
		}
		entries = append(entries, toEntry(loc, u))
	}
	r.logger.Debug("nested sitemap expanded", "url", nestedURL, "entries", len(entries))
	return entries
}

// fetchDocument fetches and parses a sitemap document. When requireXML is
// set, the content type must mention xml.
func (r *Resolver) fetchDocument(ctx context.Context, rawURL string, timeout time.Duration, requireXML bool) (*document, error) {
	resp, err := r.getter.Get(ctx, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if requireXML && !resp.IsXML() {
		return nil, fmt.Errorf("unexpected content type %q", resp.ContentType)
	}
	return parse(resp.Body)
}

// parse decodes a sitemap document, gunzipping .xml.gz bodies first.
// Non-UTF-8 charsets are passed through unchanged; sitemaps are required to
// be UTF-8.
func parse(body []byte) (*document, error) {
	if isGzip(body) {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzipped sitemap: %w", err)
		}
		defer zr.Close()
		if body, err = io.ReadAll(io.LimitReader(zr, maxSitemapSize)); err != nil {
			return nil, fmt.Errorf("failed to decompress sitemap: %w", err)
		}
	}

	var doc document
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}
	return &doc, nil
}

func normalizeLoc(loc string) (string, bool) {
	normalized, err := webaddr.Normalize(loc)
	if err != nil {
		return "", false
	}
	return normalized, true
}

func isNestedSitemap(loc string) bool {
	lower := strings.ToLower(loc)
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// isGzip reports whether body starts with the gzip magic number. Gzipped
// sitemap files are served as such, not with a Content-Encoding.
func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b
}

func toEntry(loc string, u urlElement) model.SitemapEntry {
	return model.SitemapEntry{
		URL:             loc,
		LastModified:    model.ParseLastModified(u.LastMod),
		ChangeFrequency: strings.TrimSpace(u.ChangeFreq),
		Priority:        strings.TrimSpace(u.Priority),
	}
}

// dedupe keeps the first position and the last value of each URL.
func dedupe(entries []model.SitemapEntry) []model.SitemapEntry {
	index := make(map[string]int, len(entries))
	result := make([]model.SitemapEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.URL]; ok {
			result[i] = e
			continue
		}
		index[e.URL] = len(result)
		result = append(result, e)
	}
	return result
}
