package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docharvest/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.HarvestReport {
	lastmod := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	report := model.NewHarvestReport("ex.com")
	report.Origin = "https://www.ex.com"
	report.Duration = 1500 * time.Millisecond
	report.RobotsURL = "https://www.ex.com/robots.txt"
	report.Seeds = []model.SitemapEntry{
		{URL: "https://www.ex.com/a", LastModified: &lastmod},
	}
	report.PagesFetched = 3
	report.PagesSkipped = 1
	report.DownloadsDiscovered = 4
	report.Downloads = []model.DownloadRecord{
		{
			DownloadURL:  "https://www.ex.com/docs/annual.pdf",
			Hierarchy:    []string{"https://www.ex.com/a"},
			LastModified: &lastmod,
		},
		{
			DownloadURL: "https://www.ex.com/docs/budget.pdf",
			Hierarchy:   []string{"https://www.ex.com/a", "https://www.ex.com/b"},
		},
	}
	report.SkippedKnown = 1
	report.Documents = []model.Document{
		{
			URL:         "https://www.ex.com/docs/annual.pdf",
			Domain:      "www.ex.com",
			Title:       "Annual Report",
			ContentType: model.ContentTypePDF,
			Snippet:     "Revenue grew in every quarter",
			Size:        2048,
		},
	}
	report.SkippedDocuments[model.ContentTypeHTML] = 2

	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"DOCHARVEST REPORT", "ex.com", "https://www.ex.com", "1.5s", "Complete"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes discovery counters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Pages fetched:         3") {
			t.Error("expected pages fetched counter")
		}
		if !strings.Contains(output, "Unique downloads:      2") {
			t.Error("expected unique downloads counter")
		}
		if !strings.Contains(output, "depth 1: 1") || !strings.Contains(output, "depth 2: 1") {
			t.Error("expected per-depth counts")
		}
	})

	t.Run("writes downloads and documents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[+] https://www.ex.com/docs/annual.pdf") {
			t.Error("expected download line")
		}
		if !strings.Contains(output, "lastmod: 2024-03-01, depth: 1") {
			t.Error("expected lastmod and depth of first download")
		}
		if !strings.Contains(output, "lastmod: -, depth: 2") {
			t.Error("expected dash for missing lastmod")
		}
		if !strings.Contains(output, "Annual Report") {
			t.Error("expected document title")
		}
		if !strings.Contains(output, "2.0 kB") {
			t.Error("expected humanized document size")
		}
		if !strings.Contains(output, "html") {
			t.Error("expected skipped content type")
		}
	})

	t.Run("verbose shows hierarchy and snippet", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "  https://www.ex.com/b") {
			t.Error("expected indented hierarchy entry")
		}
		if !strings.Contains(output, "Revenue grew") {
			t.Error("expected snippet in verbose output")
		}
	})

	t.Run("hides empty sections by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(model.NewHarvestReport("empty.com")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "DOWNLOADS\n") {
			t.Error("expected downloads section to be hidden")
		}
		if strings.Contains(output, "DOCUMENTS\n") {
			t.Error("expected documents section to be hidden")
		}
	})

	t.Run("shows empty sections when configured", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithShowEmpty(true))

		if _, err := w.Write(model.NewHarvestReport("empty.com")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No downloads found") {
			t.Error("expected empty downloads message")
		}
		if !strings.Contains(output, "No documents processed") {
			t.Error("expected empty documents message")
		}
	})
}

// TestSimpleWriterStatus tests the status line for failed and partial runs.
func TestSimpleWriterStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		modify   func(r *model.HarvestReport)
		expected string
	}{
		{
			name:     "error",
			modify:   func(r *model.HarvestReport) { r.SetError(errors.New("robots unavailable")) },
			expected: "ERROR - robots unavailable",
		},
		{
			name: "timed out",
			modify: func(r *model.HarvestReport) {
				r.TimedOut = true
				r.SetError(errors.New("context deadline exceeded"))
			},
			expected: "TIMED OUT (partial results)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			report := createTestReport()
			tt.modify(report)

			if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected status %q in output", tt.expected)
			}
		})
	}
}

// TestSimpleWriterWriteSummaries tests the one-line-per-run table.
func TestSimpleWriterWriteSummaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSimpleWriter(&buf)

	failed := model.NewHarvestReport("down.com")
	failed.SetError(errors.New("connection refused"))

	summaries := []model.Summary{createTestReport().Summarize(), failed.Summarize()}
	if _, err := w.WriteSummaries(summaries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "DOMAIN") {
		t.Errorf("expected header line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "ex.com") || !strings.Contains(lines[1], "Complete") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "ERROR - connection refused") {
		t.Errorf("unexpected second row %q", lines[2])
	}
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed model.HarvestReport
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}

		if parsed.Domain != "ex.com" {
			t.Errorf("expected domain %q, got %q", "ex.com", parsed.Domain)
		}
		if len(parsed.Downloads) != 2 {
			t.Errorf("expected 2 downloads, got %d", len(parsed.Downloads))
		}
		if parsed.SkippedDocuments[model.ContentTypeHTML] != 2 {
			t.Errorf("expected 2 skipped html documents, got %d", parsed.SkippedDocuments[model.ContentTypeHTML])
		}
	})

	t.Run("error is serialized as a message", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)
		report := createTestReport()
		report.SetError(errors.New("robots unavailable"))

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), `"error":"robots unavailable"`) {
			t.Errorf("expected error message in output, got %s", buf.String())
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) > 1 {
			t.Errorf("expected compact output (1 line), got %d lines", len(lines))
		}
	})

	t.Run("pretty print with indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) < 5 {
			t.Errorf("expected multi-line output, got %d lines", len(lines))
		}
	})

	t.Run("WriteSummaries outputs an array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteSummaries([]model.Summary{createTestReport().Summarize()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed []model.Summary
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(parsed) != 1 {
			t.Fatalf("expected 1 summary, got %d", len(parsed))
		}
		if parsed[0].Downloads != 2 {
			t.Errorf("expected 2 downloads, got %d", parsed[0].Downloads)
		}
	})

	t.Run("nil summaries are an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteSummaries(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != "[]" {
			t.Errorf("expected [], got %s", got)
		}
	})
}

// TestWithIndent tests custom indentation.
func TestWithIndent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf, WithIndent("", "\t"))

	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "\n\t\"domain\"") {
		t.Error("expected tab indentation")
	}
}

// TestFullJSONWriter tests the full JSON writer with metadata.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewFullJSONWriter(&buf, "2.0.0", WithPrettyPrint())

	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed JSONReport
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if parsed.Version != "2.0.0" {
		t.Errorf("expected version %q, got %q", "2.0.0", parsed.Version)
	}
	if parsed.Report == nil || parsed.Report.Domain != "ex.com" {
		t.Error("expected wrapped report")
	}
	if parsed.Summary.Documents != 1 {
		t.Errorf("expected 1 document in summary, got %d", parsed.Summary.Documents)
	}
}

// TestMultiWriter tests writing to multiple outputs.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var buf1, buf2 bytes.Buffer
		multi := NewMultiWriter(NewSimpleWriter(&buf1), NewJSONWriter(&buf2))

		n, err := multi.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n != buf1.Len()+buf2.Len() {
			t.Errorf("expected %d bytes, got %d", buf1.Len()+buf2.Len(), n)
		}
		if strings.Contains(buf1.String(), "{") {
			t.Error("expected buf1 (simple) to not be JSON")
		}
		if !strings.Contains(buf2.String(), "{") {
			t.Error("expected buf2 (JSON) to contain JSON")
		}
	})

	t.Run("writes summaries to all writers", func(t *testing.T) {
		t.Parallel()

		var buf1, buf2 bytes.Buffer
		multi := NewMultiWriter(NewSimpleWriter(&buf1), NewMarkdownWriter(&buf2))

		if _, err := multi.WriteSummaries([]model.Summary{createTestReport().Summarize()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf1.String(), "DOMAIN") {
			t.Error("expected simple summary table")
		}
		if !strings.Contains(buf2.String(), "| Domain") {
			t.Error("expected markdown summary table")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.HarvestReport) string {
		t.Helper()
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "# docharvest Report") {
			t.Error("expected output to contain H1 header")
		}
		if !strings.Contains(output, "`ex.com`") {
			t.Error("expected output to contain the domain")
		}
		if !strings.Contains(output, "✅ Complete") {
			t.Error("expected complete status")
		}
	})

	t.Run("writes discovery table and pie chart", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "## Discovery") {
			t.Error("expected discovery header")
		}
		if !strings.Contains(output, "**2**") {
			t.Error("expected bold unique download count")
		}
		if !strings.Contains(output, "pie") {
			t.Error("expected mermaid pie chart")
		}
		if !strings.Contains(output, "Depth 2") {
			t.Error("expected depth label in pie chart")
		}
	})

	t.Run("writes downloads table", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "## Downloads") {
			t.Error("expected downloads header")
		}
		if !strings.Contains(output, "https://www.ex.com/docs/budget.pdf") {
			t.Error("expected download URL")
		}
		if !strings.Contains(output, "2024-03-01") {
			t.Error("expected last modified date")
		}
	})

	t.Run("writes documents with snippet details", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "## Documents") {
			t.Error("expected documents header")
		}
		if !strings.Contains(output, "<details>") {
			t.Error("expected collapsible snippet")
		}
		if !strings.Contains(output, "Revenue grew") {
			t.Error("expected snippet text")
		}
		if !strings.Contains(output, "html: 2") {
			t.Error("expected skipped content type count")
		}
	})

	t.Run("tip on success", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected tip alert")
		}
	})

	t.Run("caution on error", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.SetError(errors.New("robots unavailable"))

		output := write(t, report)
		if !strings.Contains(output, "[!CAUTION]") {
			t.Error("expected caution alert")
		}
		if !strings.Contains(output, "robots unavailable") {
			t.Error("expected error message in output")
		}
	})

	t.Run("warning on timeout", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.TimedOut = true

		output := write(t, report)
		if !strings.Contains(output, "[!WARNING]") {
			t.Error("expected warning alert")
		}
		if !strings.Contains(output, "Timed Out") {
			t.Error("expected timed out status")
		}
	})

	t.Run("no sitemap", func(t *testing.T) {
		t.Parallel()

		output := write(t, model.NewHarvestReport("empty.com"))
		if !strings.Contains(output, "[!IMPORTANT]") {
			t.Error("expected important alert")
		}
		if !strings.Contains(output, "No downloads found.") {
			t.Error("expected empty downloads message")
		}
		if strings.Contains(output, "## Documents") {
			t.Error("expected documents section to be omitted")
		}
	})

	t.Run("writes footer", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "https://github.com/nao1215/docharvest") {
			t.Error("expected project link")
		}
	})
}

// TestMarkdownWriterWriteSummaries tests the Markdown run table.
func TestMarkdownWriterWriteSummaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	failed := model.NewHarvestReport("down.com")
	failed.SetError(errors.New("connection refused"))

	if _, err := w.WriteSummaries([]model.Summary{createTestReport().Summarize(), failed.Summarize()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "# docharvest Runs") {
		t.Error("expected H1 header")
	}
	if !strings.Contains(output, "`down.com`") {
		t.Error("expected failed domain row")
	}
	if !strings.Contains(output, "❌ Error - connection refused") {
		t.Error("expected error status")
	}
}

// TestTruncateString tests the string truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"ab", 5, "ab"},
		{"日本語のドキュメント", 6, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			result := truncateString(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
