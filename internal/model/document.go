package model

import "time"

// ContentType is the coarse classification of a download's HTTP content type.
type ContentType string

// Content types reported by the document processor.
const (
	ContentTypePDF           ContentType = "pdf"
	ContentTypeHTML          ContentType = "html"
	ContentTypeVideo         ContentType = "video"
	ContentTypeJSON          ContentType = "json"
	ContentTypeXML           ContentType = "xml"
	ContentTypeDOCX          ContentType = "docx"
	ContentTypePPTX          ContentType = "pptx"
	ContentTypeSpreadsheet   ContentType = "spreadsheet"
	ContentTypeYouTube       ContentType = "youtube video"
	ContentTypeUnknown       ContentType = "unknown"
	ContentTypeErrorFetching ContentType = "error_fetching"
)

// String returns the content type name.
func (c ContentType) String() string {
	return string(c)
}

// ParseContentType converts a stored name back into a ContentType.
// Unknown names map to ContentTypeUnknown.
func ParseContentType(s string) ContentType {
	switch ct := ContentType(s); ct {
	case ContentTypePDF, ContentTypeHTML, ContentTypeVideo, ContentTypeJSON, ContentTypeXML,
		ContentTypeDOCX, ContentTypePPTX, ContentTypeSpreadsheet, ContentTypeYouTube,
		ContentTypeErrorFetching:
		return ct
	default:
		return ContentTypeUnknown
	}
}

// AddedByCrawler marks documents that were found by a harvest run.
const AddedByCrawler = "crawler"

// MaxSnippetLength is the maximum number of runes kept in Document.Snippet.
const MaxSnippetLength = 500

// Document is a processed download ready for the store.
type Document struct {
	// URL is the normalized download URL; it is the store key.
	URL string `json:"url"`

	// Domain is the host the document was served from.
	Domain string `json:"domain"`

	// Source is the registered domain's label, e.g. "example" for example.co.uk.
	Source string `json:"source"`

	// Title comes from document metadata, or the file name when there is none.
	Title string `json:"title"`

	// ContentType is the classified content type.
	ContentType ContentType `json:"content_type"`

	// Snippet is a short text excerpt of at most MaxSnippetLength runes.
	Snippet string `json:"snippet,omitempty"`

	// PublishedDate is the sitemap lastmod, kept only for documents linked
	// directly from a sitemap page (hierarchy length 1).
	PublishedDate *time.Time `json:"published_date,omitempty"`

	// LastModified is the lastmod inherited from the seed.
	LastModified *time.Time `json:"last_modified,omitempty"`

	// Hierarchy is the discovery path of the referring page.
	Hierarchy []string `json:"hierarchy"`

	// Metadata holds document properties such as author or producer.
	Metadata map[string]string `json:"metadata,omitempty"`

	// ContentHash is the hex SHA3-256 of the downloaded bytes.
	ContentHash string `json:"content_hash,omitempty"`

	// Size is the number of bytes downloaded.
	Size int64 `json:"size"`

	// AddedBy records which component created the document.
	AddedBy string `json:"added_by"`

	// CollectedAt is when the document was processed.
	CollectedAt time.Time `json:"collected_at"`
}

// TruncateSnippet limits Snippet to MaxSnippetLength runes.
func (d *Document) TruncateSnippet() {
	runes := []rune(d.Snippet)
	if len(runes) > MaxSnippetLength {
		d.Snippet = string(runes[:MaxSnippetLength])
	}
}
