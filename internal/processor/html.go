package processor

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML reads the title, meta tags and visible text of an HTML document.
func extractHTML(body []byte) (extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extraction{}, err
	}

	metadata := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, ok = s.Attr("property")
		}
		content, hasContent := s.Attr("content")
		if !ok || !hasContent || strings.TrimSpace(content) == "" {
			return
		}
		switch strings.ToLower(name) {
		case "description", "author", "keywords", "og:title", "og:description", "article:published_time":
			metadata[strings.ToLower(name)] = strings.TrimSpace(content)
		}
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = metadata["og:title"]
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script,style,noscript,nav,header,footer").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		text = metadata["description"]
	}

	return extraction{
		title:    title,
		text:     text,
		metadata: metadata,
	}, nil
}
