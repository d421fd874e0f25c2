package model

import (
	"slices"
	"time"
)

// DownloadRecord is a discovered link to a downloadable document.
type DownloadRecord struct {
	// DownloadURL is the normalized document URL.
	DownloadURL string `json:"download_url"`

	// Hierarchy is the discovery path of the page that linked the document,
	// starting at the seed.
	Hierarchy []string `json:"hierarchy"`

	// LastModified is inherited from the seed's sitemap entry.
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Depth is the length of the referring page's hierarchy.
func (d DownloadRecord) Depth() int {
	return len(d.Hierarchy)
}

// Fresher reports whether a should replace b when both point at the same
// document. A later LastModified wins, an absent one being the oldest. On
// equal timestamps the shorter hierarchy wins, and on equal lengths the
// lexicographically smaller hierarchy, so the winner never depends on the
// order records were discovered in.
func Fresher(a, b DownloadRecord) bool {
	switch compareTimes(a.LastModified, b.LastModified) {
	case 1:
		return true
	case -1:
		return false
	}
	if len(a.Hierarchy) != len(b.Hierarchy) {
		return len(a.Hierarchy) < len(b.Hierarchy)
	}
	return slices.Compare(a.Hierarchy, b.Hierarchy) < 0
}

// compareTimes orders optional timestamps with nil as the minimum.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
