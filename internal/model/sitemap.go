package model

import (
	"strings"
	"time"
)

// SitemapEntry is a page listed in a domain's sitemap.
// Its identity is URL, which is always normalized.
type SitemapEntry struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// LastModified is the sitemap's <lastmod>; nil when absent or unparseable.
	LastModified *time.Time `json:"last_modified,omitempty"`

	// ChangeFrequency is the raw <changefreq> value.
	ChangeFrequency string `json:"change_frequency,omitempty"`

	// Priority is the raw <priority> value.
	Priority string `json:"priority,omitempty"`
}

// lastModifiedLayouts are the W3C datetime forms accepted in <lastmod>.
var lastModifiedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseLastModified parses a sitemap <lastmod> value.
// It returns nil for empty or unparseable input; a bad timestamp never fails
// a run, it only sorts as the oldest possible value.
func ParseLastModified(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range lastModifiedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
