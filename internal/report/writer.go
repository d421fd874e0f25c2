package report

import (
	"io"

	"github.com/nao1215/docharvest/internal/model"
)

// Writer defines the interface for report output.
// Implementations write harvest results in various formats.
type Writer interface {
	// Write outputs a full run report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.HarvestReport) (int, error)

	// WriteSummaries outputs one line of counters per run, e.g. for a batch
	// of domains or the run history of one domain.
	WriteSummaries(summaries []model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.HarvestReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummaries outputs the summaries to all configured Writers.
func (m *MultiWriter) WriteSummaries(summaries []model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummaries(summaries)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns the one-word outcome of a run.
func status(timedOut bool, errMessage string) string {
	switch {
	case timedOut:
		return "TIMED OUT (partial results)"
	case errMessage != "":
		return "ERROR - " + errMessage
	default:
		return "Complete"
	}
}

// formatLastModified renders an optional lastmod for tables.
func formatLastModified(d model.DownloadRecord) string {
	if d.LastModified == nil {
		return "-"
	}
	return d.LastModified.Format("2006-01-02")
}
