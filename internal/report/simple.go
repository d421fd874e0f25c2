package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/docharvest/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without entries are shown.
	showEmpty bool

	// verbose adds the discovery hierarchy of every download.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.HarvestReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDiscovery(&sb, report)
	w.writeDownloads(&sb, report)
	w.writeDocuments(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummaries outputs one line per run.
func (w *SimpleWriter) WriteSummaries(summaries []model.Summary) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%-30s %-19s %6s %6s %9s %9s  %s\n",
		"DOMAIN", "STARTED", "SEEDS", "PAGES", "DOWNLOADS", "DOCUMENTS", "STATUS")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "%-30s %-19s %6d %6d %9d %9d  %s\n",
			s.Domain,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Seeds,
			s.PagesFetched,
			s.Downloads,
			s.Documents,
			status(s.TimedOut, s.Error),
		)
	}

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.HarvestReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        DOCHARVEST REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Domain:         %s\n", report.Domain)
	if report.Origin != "" {
		fmt.Fprintf(sb, "Origin:         %s\n", report.Origin)
	}
	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", status(report.TimedOut, report.ErrorMessage))
	sb.WriteString("\n")
}

// writeDiscovery writes the crawl counters.
func (w *SimpleWriter) writeDiscovery(sb *strings.Builder, report *model.HarvestReport) {
	section(sb, "DISCOVERY")

	robots := report.RobotsURL
	if robots == "" {
		robots = "-"
	}
	fmt.Fprintf(sb, "  Sitemap seeds:         %d\n", len(report.Seeds))
	fmt.Fprintf(sb, "  Robots policy:         %s\n", robots)
	fmt.Fprintf(sb, "  Pages fetched:         %d\n", report.PagesFetched)
	fmt.Fprintf(sb, "  Pages skipped:         %d\n", report.PagesSkipped)
	fmt.Fprintf(sb, "  Downloads discovered:  %d\n", report.DownloadsDiscovered)
	fmt.Fprintf(sb, "  Unique downloads:      %d\n", len(report.Downloads))
	fmt.Fprintf(sb, "  Already collected:     %d\n", report.SkippedKnown)
	sb.WriteString("\n")

	for _, dc := range report.DownloadsByDepth() {
		fmt.Fprintf(sb, "  depth %d: %d\n", dc.Depth, dc.Count)
	}
	if len(report.Downloads) > 0 {
		sb.WriteString("\n")
	}
}

// writeDownloads lists the unique downloads.
func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *model.HarvestReport) {
	if len(report.Downloads) == 0 && !w.showEmpty {
		return
	}

	section(sb, "DOWNLOADS")

	if len(report.Downloads) == 0 {
		sb.WriteString("  No downloads found\n\n")
		return
	}

	for _, d := range report.Downloads {
		fmt.Fprintf(sb, "  [+] %s\n", d.DownloadURL)
		fmt.Fprintf(sb, "      lastmod: %s, depth: %d\n", formatLastModified(d), d.Depth())
		if w.verbose {
			for i, page := range d.Hierarchy {
				fmt.Fprintf(sb, "      %s%s\n", strings.Repeat("  ", i), page)
			}
		}
	}
	sb.WriteString("\n")
}

// writeDocuments lists the processed documents and the skip counters.
func (w *SimpleWriter) writeDocuments(sb *strings.Builder, report *model.HarvestReport) {
	if len(report.Documents) == 0 && len(report.SkippedDocuments) == 0 && !w.showEmpty {
		return
	}

	section(sb, "DOCUMENTS")

	if len(report.Documents) == 0 {
		sb.WriteString("  No documents processed\n")
	}
	for _, doc := range report.Documents {
		fmt.Fprintf(sb, "  * %s\n", doc.Title)
		fmt.Fprintf(sb, "    %s, %s, %s\n", doc.ContentType, humanize.Bytes(uint64(max(doc.Size, 0))), doc.URL)
		if w.verbose && doc.Snippet != "" {
			fmt.Fprintf(sb, "    %s\n", truncateString(doc.Snippet, 120))
		}
	}

	if len(report.SkippedDocuments) > 0 {
		sb.WriteString("\n  Skipped by content type:\n")
		types := make([]string, 0, len(report.SkippedDocuments))
		for ct := range report.SkippedDocuments {
			types = append(types, ct.String())
		}
		slices.Sort(types)
		for _, ct := range types {
			fmt.Fprintf(sb, "    %-16s %d\n", ct, report.SkippedDocuments[model.ContentType(ct)])
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by docharvest\n")
	sb.WriteString("https://github.com/nao1215/docharvest\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
