package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// HarvestReport is the result of one harvest run against a domain.
// Pipeline steps fill it in order; writers and the store read it.
type HarvestReport struct {
	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Domain is the domain as given by the user.
	Domain string `json:"domain"`

	// Origin is the normalized scheme://host the run started from.
	Origin string `json:"origin"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// Seeds are the deduplicated sitemap entries.
	Seeds []SitemapEntry `json:"seeds,omitempty"`

	// RobotsURL is the robots.txt the run obeyed.
	RobotsURL string `json:"robots_url,omitempty"`

	// PagesFetched counts HTML pages fetched and parsed across all seeds.
	PagesFetched int `json:"pages_fetched"`

	// PagesSkipped counts tasks dropped for depth, robots or fetch failures.
	PagesSkipped int `json:"pages_skipped"`

	// DownloadsDiscovered counts download records before deduplication.
	DownloadsDiscovered int `json:"downloads_discovered"`

	// Downloads are the deduplicated download records.
	Downloads []DownloadRecord `json:"downloads,omitempty"`

	// SkippedKnown counts downloads dropped because the store already has them.
	SkippedKnown int `json:"skipped_known"`

	// Documents are the processed downloads.
	Documents []Document `json:"documents,omitempty"`

	// SkippedDocuments counts downloads not processed, by content type.
	SkippedDocuments map[ContentType]int `json:"skipped_documents,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true when the run was cut short by its context.
	TimedOut bool `json:"timed_out"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewHarvestReport creates a report for domain with a fresh run ID.
func NewHarvestReport(domain string) *HarvestReport {
	return &HarvestReport{
		RunID:            uuid.NewString(),
		Domain:           domain,
		StartedAt:        time.Now(),
		SkippedDocuments: make(map[ContentType]int),
	}
}

// AddPerformedStep records that a pipeline step ran.
func (r *HarvestReport) AddPerformedStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// SetError records the error that stopped the run.
func (r *HarvestReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the run stopped with an error.
func (r *HarvestReport) Failed() bool {
	return r.ErrorMessage != ""
}

// DownloadURLs returns the URLs of the deduplicated downloads.
func (r *HarvestReport) DownloadURLs() []string {
	urls := make([]string, 0, len(r.Downloads))
	for _, d := range r.Downloads {
		urls = append(urls, d.DownloadURL)
	}
	return urls
}

// DepthCount is the number of downloads found at one hierarchy length.
type DepthCount struct {
	Depth int `json:"depth"`
	Count int `json:"count"`
}

// DownloadsByDepth counts downloads per referring hierarchy length,
// ordered by depth.
func (r *HarvestReport) DownloadsByDepth() []DepthCount {
	counts := make(map[int]int)
	for _, d := range r.Downloads {
		counts[d.Depth()]++
	}
	result := make([]DepthCount, 0, len(counts))
	for depth, count := range counts {
		result = append(result, DepthCount{Depth: depth, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Depth < result[j].Depth
	})
	return result
}

// Summary is the condensed view of a report used by the text writer and
// the run history.
type Summary struct {
	RunID               string    `json:"run_id"`
	Domain              string    `json:"domain"`
	StartedAt           time.Time `json:"started_at"`
	Seeds               int       `json:"seeds"`
	PagesFetched        int       `json:"pages_fetched"`
	DownloadsDiscovered int       `json:"downloads_discovered"`
	Downloads           int       `json:"downloads"`
	SkippedKnown        int       `json:"skipped_known"`
	Documents           int       `json:"documents"`
	TimedOut            bool      `json:"timed_out"`
	Error               string    `json:"error,omitempty"`
}

// Summarize condenses the report.
func (r *HarvestReport) Summarize() Summary {
	return Summary{
		RunID:               r.RunID,
		Domain:              r.Domain,
		StartedAt:           r.StartedAt,
		Seeds:               len(r.Seeds),
		PagesFetched:        r.PagesFetched,
		DownloadsDiscovered: r.DownloadsDiscovered,
		Downloads:           len(r.Downloads),
		SkippedKnown:        r.SkippedKnown,
		Documents:           len(r.Documents),
		TimedOut:            r.TimedOut,
		Error:               r.ErrorMessage,
	}
}
