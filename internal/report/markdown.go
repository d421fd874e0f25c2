package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/docharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.HarvestReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeDiscovery(md, report)
	w.writeDownloads(md, report)
	w.writeDocuments(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummaries outputs the summaries as a Markdown table.
func (w *MarkdownWriter) WriteSummaries(summaries []model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("docharvest Runs")
	md.PlainText("")

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			"`" + s.Domain + "`",
			s.StartedAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(s.Seeds),
			strconv.Itoa(s.PagesFetched),
			strconv.Itoa(s.Downloads),
			strconv.Itoa(s.Documents),
			statusText(s.TimedOut, s.Error),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Started", "Seeds", "Pages", "Downloads", "Documents", "Status"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// statusText returns the status with an emoji marker.
func statusText(timedOut bool, errMessage string) string {
	switch {
	case timedOut:
		return "⚠️ Timed Out (partial results)"
	case errMessage != "":
		return "❌ Error - " + errMessage
	default:
		return "✅ Complete"
	}
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.HarvestReport) {
	md.H1("docharvest Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + report.Domain + "`"},
			{"Origin", valueOrDash(report.Origin)},
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Status", statusText(report.TimedOut, report.ErrorMessage)},
		},
	})
	md.PlainText("")
}

// writeDiscovery writes the crawl counters, the depth chart and an alert.
func (w *MarkdownWriter) writeDiscovery(md *markdown.Markdown, report *model.HarvestReport) {
	md.H2("Discovery")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Sitemap seeds", strconv.Itoa(len(report.Seeds))},
			{"Robots policy", valueOrDash(report.RobotsURL)},
			{"Pages fetched", strconv.Itoa(report.PagesFetched)},
			{"Pages skipped", strconv.Itoa(report.PagesSkipped)},
			{"Downloads discovered", strconv.Itoa(report.DownloadsDiscovered)},
			{"Unique downloads", "**" + strconv.Itoa(len(report.Downloads)) + "**"},
			{"Already collected", strconv.Itoa(report.SkippedKnown)},
		},
	})
	md.PlainText("")

	if len(report.Downloads) > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of downloads per discovery depth.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.HarvestReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Downloads by Discovery Depth"),
		piechart.WithShowData(true),
	)

	for _, dc := range report.DownloadsByDepth() {
		chart.LabelAndIntValue(fmt.Sprintf("Depth %d", dc.Depth), uint64(dc.Count))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.HarvestReport) {
	switch {
	case report.ErrorMessage != "" && !report.TimedOut:
		md.Cautionf("The run stopped with an error: %s", report.ErrorMessage)
	case report.TimedOut:
		md.Warningf(
			"The run was cut short. %d download(s) were found before it stopped.",
			len(report.Downloads),
		)
	case len(report.Seeds) == 0:
		md.Importantf("No sitemap was found for %s; nothing was crawled.", report.Domain)
	case len(report.Downloads) == 0:
		md.Note("No downloadable documents were linked from the crawled pages.")
	default:
		md.Tip(fmt.Sprintf("%d unique download(s) discovered.", len(report.Downloads)))
	}
	md.PlainText("")
}

// writeDownloads writes the table of unique downloads.
func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, report *model.HarvestReport) {
	md.H2("Downloads")
	md.PlainText("")

	if len(report.Downloads) == 0 {
		md.PlainText("No downloads found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Downloads))
	for i, d := range report.Downloads {
		rows[i] = []string{
			truncateString(d.DownloadURL, 80),
			formatLastModified(d),
			strconv.Itoa(d.Depth()),
			truncateString(referrer(d), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Last Modified", "Depth", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDocuments writes the table of processed documents with their snippets.
func (w *MarkdownWriter) writeDocuments(md *markdown.Markdown, report *model.HarvestReport) {
	if len(report.Documents) == 0 && len(report.SkippedDocuments) == 0 {
		return
	}

	md.H2("Documents")
	md.PlainText("")

	if len(report.Documents) > 0 {
		rows := make([][]string, len(report.Documents))
		for i, doc := range report.Documents {
			rows[i] = []string{
				truncateString(doc.Title, 60),
				doc.ContentType.String(),
				humanize.Bytes(uint64(max(doc.Size, 0))),
				truncateString(doc.URL, 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Title", "Type", "Size", "URL"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, doc := range report.Documents {
			if doc.Snippet != "" {
				md.Details(doc.Title, doc.Snippet)
			}
		}
		md.PlainText("")
	}

	if len(report.SkippedDocuments) > 0 {
		skipped := make([]string, 0, len(report.SkippedDocuments))
		for ct, n := range report.SkippedDocuments {
			skipped = append(skipped, fmt.Sprintf("%s: %d", ct, n))
		}
		md.PlainText("Skipped by content type:")
		md.PlainText("")
		slices.Sort(skipped)
		md.BulletList(skipped...)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [docharvest](https://github.com/nao1215/docharvest)*")
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// referrer is the page that linked the download.
func referrer(d model.DownloadRecord) string {
	if len(d.Hierarchy) == 0 {
		return "-"
	}
	return d.Hierarchy[len(d.Hierarchy)-1]
}
