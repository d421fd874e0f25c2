package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewHarvestReport(t *testing.T) {
	t.Parallel()

	report := NewHarvestReport("example.com")

	t.Run("sets domain", func(t *testing.T) {
		t.Parallel()
		if report.Domain != "example.com" {
			t.Errorf("expected %q, got %q", "example.com", report.Domain)
		}
	})

	t.Run("assigns a run id", func(t *testing.T) {
		t.Parallel()
		if report.RunID == "" {
			t.Error("expected RunID to be set")
		}
		if other := NewHarvestReport("example.com"); other.RunID == report.RunID {
			t.Error("expected distinct run ids")
		}
	})

	t.Run("sets start timestamp", func(t *testing.T) {
		t.Parallel()
		if time.Since(report.StartedAt) > time.Minute {
			t.Error("StartedAt is too old")
		}
	})

	t.Run("initializes SkippedDocuments map", func(t *testing.T) {
		t.Parallel()
		if report.SkippedDocuments == nil {
			t.Error("expected SkippedDocuments to be initialized")
		}
	})
}

func TestHarvestReportSetError(t *testing.T) {
	t.Parallel()

	report := NewHarvestReport("example.com")
	if report.Failed() {
		t.Fatal("expected a new report not to be failed")
	}

	report.SetError(errors.New("robots.txt unavailable"))
	if !report.Failed() {
		t.Error("expected report to be failed")
	}
	if report.ErrorMessage != "robots.txt unavailable" {
		t.Errorf("expected error message to be copied, got %q", report.ErrorMessage)
	}
}

func TestHarvestReportDownloadsByDepth(t *testing.T) {
	t.Parallel()

	report := NewHarvestReport("example.com")
	report.Downloads = []DownloadRecord{
		{DownloadURL: "https://www.example.com/a.pdf", Hierarchy: []string{"s"}},
		{DownloadURL: "https://www.example.com/b.pdf", Hierarchy: []string{"s", "p"}},
		{DownloadURL: "https://www.example.com/c.pdf", Hierarchy: []string{"s"}},
	}

	got := report.DownloadsByDepth()
	if len(got) != 2 {
		t.Fatalf("expected 2 depth buckets, got %d", len(got))
	}
	if got[0].Depth != 1 || got[0].Count != 2 {
		t.Errorf("expected depth 1 with 2 downloads, got %+v", got[0])
	}
	if got[1].Depth != 2 || got[1].Count != 1 {
		t.Errorf("expected depth 2 with 1 download, got %+v", got[1])
	}

	urls := report.DownloadURLs()
	if len(urls) != 3 || urls[1] != "https://www.example.com/b.pdf" {
		t.Errorf("expected download URLs in order, got %v", urls)
	}
}

func TestHarvestReportSummarize(t *testing.T) {
	t.Parallel()

	report := NewHarvestReport("example.com")
	report.Seeds = []SitemapEntry{{URL: "https://www.example.com/a"}}
	report.PagesFetched = 4
	report.DownloadsDiscovered = 3
	report.Downloads = []DownloadRecord{{DownloadURL: "https://www.example.com/a.pdf"}}
	report.SkippedKnown = 1

	s := report.Summarize()
	if s.Seeds != 1 || s.PagesFetched != 4 || s.DownloadsDiscovered != 3 || s.Downloads != 1 || s.SkippedKnown != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.RunID != report.RunID {
		t.Errorf("expected run id %q, got %q", report.RunID, s.RunID)
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ContentType
	}{
		{"pdf", ContentTypePDF},
		{"youtube video", ContentTypeYouTube},
		{"error_fetching", ContentTypeErrorFetching},
		{"spreadsheet", ContentTypeSpreadsheet},
		{"bogus", ContentTypeUnknown},
		{"", ContentTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ParseContentType(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDocumentTruncateSnippet(t *testing.T) {
	t.Parallel()

	t.Run("long snippet is cut to the limit", func(t *testing.T) {
		t.Parallel()
		doc := &Document{Snippet: string(make([]rune, MaxSnippetLength+20))}
		doc.TruncateSnippet()
		if n := len([]rune(doc.Snippet)); n != MaxSnippetLength {
			t.Errorf("expected %d runes, got %d", MaxSnippetLength, n)
		}
	})

	t.Run("multi-byte runes are not split", func(t *testing.T) {
		t.Parallel()
		long := ""
		for range MaxSnippetLength + 5 {
			long += "é"
		}
		doc := &Document{Snippet: long}
		doc.TruncateSnippet()
		if n := len([]rune(doc.Snippet)); n != MaxSnippetLength {
			t.Errorf("expected %d runes, got %d", MaxSnippetLength, n)
		}
	})

	t.Run("short snippet is kept", func(t *testing.T) {
		t.Parallel()
		doc := &Document{Snippet: "annual report"}
		doc.TruncateSnippet()
		if doc.Snippet != "annual report" {
			t.Errorf("expected snippet to be kept, got %q", doc.Snippet)
		}
	})
}
