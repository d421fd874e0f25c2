package crawler

import (
	"slices"
	"strings"

	"github.com/nao1215/docharvest/internal/model"
)

// Dedupe keeps one record per download URL.
//
// For every URL the record that model.Fresher ranks highest survives: the
// latest LastModified, then the shortest hierarchy. The result is sorted by
// download URL and does not depend on the order of records.
func Dedupe(records []model.DownloadRecord) []model.DownloadRecord {
	best := make(map[string]model.DownloadRecord, len(records))
	for _, record := range records {
		current, ok := best[record.DownloadURL]
		if !ok || model.Fresher(record, current) {
			best[record.DownloadURL] = record
		}
	}

	result := make([]model.DownloadRecord, 0, len(best))
	for _, record := range best {
		result = append(result, record)
	}
	slices.SortFunc(result, func(a, b model.DownloadRecord) int {
		return strings.Compare(a.DownloadURL, b.DownloadURL)
	})

	return result
}
