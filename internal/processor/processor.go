package processor

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// contentTypeMapping maps substrings of a Content-Type header onto content
// types. The first matching entry wins, so order matters: "application/xhtml+xml"
// is html, not xml.
var contentTypeMapping = []struct {
	substr      string
	contentType model.ContentType
}{
	{"pdf", model.ContentTypePDF},
	{"html", model.ContentTypeHTML},
	{"video", model.ContentTypeVideo},
	{"json", model.ContentTypeJSON},
	{"xml", model.ContentTypeXML},
	{"msword", model.ContentTypeDOCX},
	{"word", model.ContentTypeDOCX},
	{"powerpoint", model.ContentTypePPTX},
	{"presentation", model.ContentTypePPTX},
	{"excel", model.ContentTypeSpreadsheet},
	{"spreadsheet", model.ContentTypeSpreadsheet},
}

// Client performs the document requests. *fetcher.Client satisfies it.
type Client interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
	Head(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
}

// Processor classifies and processes downloads one at a time.
type Processor struct {
	client  Client
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTimeout sets the timeout of each HEAD and GET request.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.timeout = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// New creates a Processor that downloads documents with client.
func New(client Client, opts ...Option) *Processor {
	p := &Processor{
		client:  client,
		timeout: config.DefaultDocumentTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Classify returns the content type of the document at rawURL.
//
// YouTube links are recognized without a request. Otherwise the Content-Type
// of a HEAD response decides; a type matching nothing is ContentTypeUnknown
// and a failed request is ContentTypeErrorFetching.
func (p *Processor) Classify(ctx context.Context, rawURL string) model.ContentType {
	if isYouTube(rawURL) {
		return model.ContentTypeYouTube
	}

	resp, err := p.client.Head(ctx, rawURL, p.timeout)
	if err != nil {
		p.logger.Error("failed to get content type", "url", rawURL, "error", err)
		return model.ContentTypeErrorFetching
	}

	return classifyContentType(resp.ContentType)
}

// classifyContentType maps a Content-Type header onto a content type.
func classifyContentType(header string) model.ContentType {
	header = strings.ToLower(header)
	for _, m := range contentTypeMapping {
		if strings.Contains(header, m.substr) {
			return m.contentType
		}
	}
	return model.ContentTypeUnknown
}

func isYouTube(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// Process downloads record's document and builds the stored representation.
// contentType is the result of Classify and selects the extractor.
func (p *Processor) Process(ctx context.Context, record model.DownloadRecord, contentType model.ContentType) (*model.Document, error) {
	resp, err := p.client.Get(ctx, record.DownloadURL, p.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", record.DownloadURL, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, record.DownloadURL, resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, record.DownloadURL)
	}
	if resp.Truncated {
		p.logger.Warn("document truncated at size limit", "url", record.DownloadURL, "size", len(resp.Body))
	}

	detected := mimetype.Detect(resp.Body)
	if contentType == model.ContentTypePDF && !detected.Is("application/pdf") {
		return nil, fmt.Errorf("%w: %s looks like %s", ErrContentMismatch, record.DownloadURL, detected.String())
	}

	var ext extraction
	switch contentType {
	case model.ContentTypePDF:
		ext, err = extractPDF(resp.Body)
		if err != nil {
			p.logger.Warn("failed to extract PDF text", "url", record.DownloadURL, "error", err)
		}
	case model.ContentTypeHTML:
		ext, err = extractHTML(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", record.DownloadURL, err)
		}
	default:
		ext = extraction{text: "", metadata: map[string]string{}}
	}

	if (contentType == model.ContentTypePDF || contentType == model.ContentTypeHTML) &&
		ext.text == "" && len(ext.metadata) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, record.DownloadURL)
	}

	sum := sha3.Sum256(resp.Body)
	doc := &model.Document{
		URL:          record.DownloadURL,
		Domain:       webaddr.Host(record.DownloadURL),
		Source:       webaddr.Source(record.DownloadURL),
		Title:        ext.title,
		ContentType:  contentType,
		Snippet:      ext.text,
		LastModified: record.LastModified,
		Hierarchy:    append([]string(nil), record.Hierarchy...),
		Metadata:     ext.metadata,
		ContentHash:  hex.EncodeToString(sum[:]),
		Size:         int64(len(resp.Body)),
		AddedBy:      model.AddedByCrawler,
		CollectedAt:  p.now().UTC(),
	}
	doc.Metadata["detected_type"] = detected.String()
	if resp.Truncated {
		doc.Metadata["truncated"] = "true"
	}
	if record.Depth() == 1 && record.LastModified != nil {
		published := *record.LastModified
		doc.PublishedDate = &published
	}
	if doc.Title == "" {
		doc.Title = TitleFromURL(record.DownloadURL)
	}
	doc.TruncateSnippet()

	return doc, nil
}

// extraction is what an extractor found in a document body.
type extraction struct {
	title    string
	text     string
	metadata map[string]string
}

// TitleFromURL derives a title from the file name of rawURL:
// "annual-report_2024.pdf" becomes "Annual Report 2024".
// It returns rawURL when the path has no file name.
func TitleFromURL(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || name == "." || name == "/" {
		return rawURL
	}

	return cases.Title(language.English).String(name)
}
