package processor

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// maxPlainText caps the text read from one document.
const maxPlainText = 8 * 1024 * 1024

// PDF Info dictionary fields. Values are either literal (...) or hex <...> strings.
var pdfInfoPatterns = map[string]*regexp.Regexp{
	"title":         regexp.MustCompile(`/Title\s*\(((?:\\.|[^\\)])*)\)|/Title\s*<([0-9A-Fa-f\s]+)>`),
	"author":        regexp.MustCompile(`/Author\s*\(((?:\\.|[^\\)])*)\)|/Author\s*<([0-9A-Fa-f\s]+)>`),
	"subject":       regexp.MustCompile(`/Subject\s*\(((?:\\.|[^\\)])*)\)|/Subject\s*<([0-9A-Fa-f\s]+)>`),
	"keywords":      regexp.MustCompile(`/Keywords\s*\(((?:\\.|[^\\)])*)\)|/Keywords\s*<([0-9A-Fa-f\s]+)>`),
	"creator":       regexp.MustCompile(`/Creator\s*\(((?:\\.|[^\\)])*)\)|/Creator\s*<([0-9A-Fa-f\s]+)>`),
	"producer":      regexp.MustCompile(`/Producer\s*\(((?:\\.|[^\\)])*)\)|/Producer\s*<([0-9A-Fa-f\s]+)>`),
	"creation_date": regexp.MustCompile(`/CreationDate\s*\(((?:\\.|[^\\)])*)\)|/CreationDate\s*<([0-9A-Fa-f\s]+)>`),
	"mod_date":      regexp.MustCompile(`/ModDate\s*\(((?:\\.|[^\\)])*)\)|/ModDate\s*<([0-9A-Fa-f\s]+)>`),
}

// XMP packet fields.
var xmpPatterns = map[string]*regexp.Regexp{
	"xmp_title":        regexp.MustCompile(`(?s)<dc:title[^>]*>.*?<rdf:li[^>]*>([^<]+)</rdf:li>`),
	"xmp_creator":      regexp.MustCompile(`(?s)<dc:creator[^>]*>.*?<rdf:li[^>]*>([^<]+)</rdf:li>`),
	"xmp_creator_tool": regexp.MustCompile(`xmp:CreatorTool>([^<]+)<`),
	"xmp_producer":     regexp.MustCompile(`pdf:Producer>([^<]+)<`),
	"xmp_document_id":  regexp.MustCompile(`xmpMM:DocumentID>([^<]+)<`),
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// extractPDF reads Info/XMP metadata and the page text. Metadata is scanned
// from the raw bytes so it survives documents the text reader rejects.
func extractPDF(data []byte) (extraction, error) {
	content := string(data)
	metadata := make(map[string]string)

	for field, pattern := range pdfInfoPatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		var value string
		switch {
		case m[1] != "":
			value = decodeLiteral(m[1])
		case m[2] != "":
			value = decodeHex(m[2])
		}
		if value != "" {
			metadata[field] = value
		}
	}

	for field, pattern := range xmpPatterns {
		if m := pattern.FindStringSubmatch(content); len(m) > 1 {
			if value := strings.TrimSpace(m[1]); value != "" {
				metadata[field] = value
			}
		}
	}

	title := metadata["title"]
	if title == "" {
		title = metadata["xmp_title"]
	}

	text, err := extractPDFText(data)

	return extraction{
		title:    title,
		text:     text,
		metadata: metadata,
	}, err
}

// extractPDFText returns the text of every page, with runs of whitespace
// collapsed. Fonts are decoded through their encodings and ToUnicode maps.
// A document the reader cannot open yields no text.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadablePDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadablePDF, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadablePDF, err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, io.LimitReader(plain, maxPlainText)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadablePDF, err)
	}

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(b.String(), " ")), nil
}

// decodeLiteral decodes the body of a PDF literal string.
func decodeLiteral(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b = append(b, c)
			continue
		}
		i++
		switch e := s[i]; e {
		case 'n':
			b = append(b, '\n')
		case 'r':
			b = append(b, '\r')
		case 't':
			b = append(b, '\t')
		case 'b':
			b = append(b, '\b')
		case 'f':
			b = append(b, '\f')
		case '\r':
			// line continuation
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
			// line continuation
		default:
			if e >= '0' && e <= '7' {
				v := int(e - '0')
				for n := 0; n < 2 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
					i++
					v = v*8 + int(s[i]-'0')
				}
				b = append(b, byte(v))
			} else {
				b = append(b, e)
			}
		}
	}
	return decodeText(b)
}

// decodeHex decodes the body of a PDF hex string.
func decodeHex(s string) string {
	s = whitespacePattern.ReplaceAllString(s, "")
	if len(s)%2 == 1 {
		s += "0"
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	return decodeText(b)
}

// decodeText converts PDF text string bytes to UTF-8. Strings starting with
// the FE FF byte order mark are UTF-16BE; anything else is treated as
// Latin-1 unless it already is valid UTF-8.
func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return strings.TrimSpace(string(utf16.Decode(units)))
	}

	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}

	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return strings.TrimSpace(string(runes))
}
