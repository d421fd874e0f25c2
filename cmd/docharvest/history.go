package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/database"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/report"
)

// Constants for download trend directions.
const (
	trendGrew      = "grew"
	trendShrank    = "shrank"
	trendUnchanged = "unchanged"
)

// errNoHistory is returned when a domain has no stored runs.
var errNoHistory = errors.New("no run history found")

// NewHistoryCmd creates the history command.
// This command reads past runs from the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Show stored harvest runs",
		Long: `History displays runs stored by 'docharvest harvest'.

Without flags it lists the runs of a domain, newest first. It can also
print a full stored report or compare the downloads of the two latest runs:
- Documents that appeared since the previous run
- Documents that are no longer linked
- How the number of downloads changed

Examples:
  # List all harvested domains
  docharvest history --list-domains

  # List the runs of a domain
  docharvest history example.com

  # Print the stored report of run 5
  docharvest history --show 5 example.com

  # Compare the latest two runs
  docharvest history --diff example.com

  # Compare the latest run with run 3 as JSON
  docharvest history --diff --with-run-id 3 --json example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-domains", "L", false,
		"List all harvested domains in the database")
	cmd.Flags().Int64P("show", "s", 0,
		"Print the stored report of a run by ID")
	cmd.Flags().Bool("diff", false,
		"Compare the downloads of the latest run with a previous run")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID instead of the previous run")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	listDomains bool
	showID      int64
	diff        bool
	withRunID   int64
	dbDir       string
	json        bool
	markdown    bool
}

func parseHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.listDomains, err = flags.GetBool("list-domains"); err != nil {
		return opts, err
	}
	if opts.showID, err = flags.GetInt64("show"); err != nil {
		return opts, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var domain string
	if !opts.listDomains {
		if len(args) == 0 {
			return errors.New("domain is required (use --list-domains to see harvested domains)")
		}
		domain = args[0]
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listDomains:
		return listHarvestedDomains(ctx, out, db)
	case opts.showID > 0:
		return showRun(ctx, out, db, domain, opts)
	case opts.diff:
		return diffRuns(ctx, out, db, domain, opts)
	default:
		return listRunHistory(ctx, out, db, domain, opts)
	}
}

// listHarvestedDomains lists every domain with stored runs.
func listHarvestedDomains(ctx context.Context, out io.Writer, db *database.DocumentDB) error {
	domains, err := db.ListHarvestedDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Fprintln(out, "No harvested domains found in the database.")
		fmt.Fprintln(out, "\nUse 'docharvest harvest <domain>' to harvest a domain.")
		return nil
	}

	fmt.Fprintf(out, "Harvested domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Fprintf(out, "  • %s\n", domain)
	}
	fmt.Fprintln(out, "\nUse 'docharvest history <domain>' to see the runs of a domain.")

	return nil
}

// runEntry is the JSON form of a stored run in the history listing.
type runEntry struct {
	ID      int64         `json:"id"`
	RunID   string        `json:"run_id"`
	Started time.Time     `json:"started_at"`
	Summary model.Summary `json:"summary"`
}

// listRunHistory lists the stored runs of a domain.
func listRunHistory(ctx context.Context, out io.Writer, db *database.DocumentDB, domain string, opts historyOptions) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if opts.json {
		entries := make([]runEntry, 0, len(runs))
		for _, meta := range runs {
			entries = append(entries, runEntry{ID: meta.ID, RunID: meta.RunID, Started: meta.Timestamp, Summary: meta.Summary})
		}
		return writeJSON(out, entries)
	}

	if opts.markdown {
		summaries := make([]model.Summary, 0, len(runs))
		for _, meta := range runs {
			summaries = append(summaries, meta.Summary)
		}
		_, err := report.NewMarkdownWriter(out).WriteSummaries(summaries)
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", domain)
		fmt.Fprintln(out, "\nUse 'docharvest harvest' to harvest this domain.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", domain, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			formatRunSummary(meta.Summary),
		)
	}

	fmt.Fprintln(out, "\nUse 'docharvest history --show <id> <domain>' to print a stored report.")
	fmt.Fprintln(out, "Use 'docharvest history --diff <domain>' to compare the latest two runs.")

	return nil
}

// formatRunSummary renders the counters of a run on one line.
func formatRunSummary(s model.Summary) string {
	parts := []string{
		fmt.Sprintf("pages:%d", s.PagesFetched),
		fmt.Sprintf("downloads:%d", s.Downloads),
		fmt.Sprintf("documents:%d", s.Documents),
	}
	switch {
	case s.TimedOut:
		parts = append(parts, "(timed out)")
	case s.Error != "":
		parts = append(parts, "(error)")
	}
	return strings.Join(parts, " ")
}

// showRun prints a stored report.
func showRun(ctx context.Context, out io.Writer, db *database.DocumentDB, domain string, opts historyOptions) error {
	r, err := loadRun(ctx, db, domain, opts.showID)
	if err != nil {
		return err
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithShowEmpty(true))
	}
	_, err = w.Write(r)
	return err
}

// loadRun fetches a run by ID and checks that it belongs to domain.
func loadRun(ctx context.Context, db *database.DocumentDB, domain string, id int64) (*model.HarvestReport, error) {
	r, err := db.GetRunReportByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run with ID %d: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("run with ID %d not found", id)
	}
	if r.Domain != domain {
		return nil, fmt.Errorf("run ID %d belongs to %s, not %s", id, r.Domain, domain)
	}
	return r, nil
}

// diffRuns compares the latest run of a domain with an earlier one.
func diffRuns(ctx context.Context, out io.Writer, db *database.DocumentDB, domain string, opts historyOptions) error {
	runs, err := db.GetRunHistory(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("%w for %s", errNoHistory, domain)
	}

	current := runs[0]
	var previous *model.HarvestReport
	if opts.withRunID > 0 {
		previous, err = loadRun(ctx, db, domain, opts.withRunID)
		if err != nil {
			return err
		}
	} else {
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previous = runs[1]
	}

	result := compareRuns(previous, current)

	switch {
	case opts.json:
		return writeJSON(out, result)
	case opts.markdown:
		writeComparisonMarkdown(out, result)
	default:
		writeComparisonText(out, result)
	}
	return nil
}

// ComparisonResult holds the download changes between two runs.
type ComparisonResult struct {
	// Domain is the harvested domain.
	Domain string `json:"domain"`

	// Previous summarizes the earlier run.
	Previous model.Summary `json:"previous"`

	// Current summarizes the later run.
	Current model.Summary `json:"current"`

	// NewDownloads are URLs found only in the current run.
	NewDownloads []string `json:"new_downloads,omitempty"`

	// RemovedDownloads are URLs found only in the previous run.
	RemovedDownloads []string `json:"removed_downloads,omitempty"`

	// UnchangedCount is the number of URLs found by both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Trend is "grew", "shrank" or "unchanged".
	Trend string `json:"trend"`
}

// compareRuns compares the download sets of two runs.
func compareRuns(previous, current *model.HarvestReport) *ComparisonResult {
	result := &ComparisonResult{
		Domain:   current.Domain,
		Previous: previous.Summarize(),
		Current:  current.Summarize(),
	}

	previousURLs := make(map[string]struct{}, len(previous.Downloads))
	for _, u := range previous.DownloadURLs() {
		previousURLs[u] = struct{}{}
	}
	currentURLs := make(map[string]struct{}, len(current.Downloads))
	for _, u := range current.DownloadURLs() {
		currentURLs[u] = struct{}{}
	}

	for u := range currentURLs {
		if _, ok := previousURLs[u]; !ok {
			result.NewDownloads = append(result.NewDownloads, u)
		}
	}
	for u := range previousURLs {
		if _, ok := currentURLs[u]; ok {
			result.UnchangedCount++
		} else {
			result.RemovedDownloads = append(result.RemovedDownloads, u)
		}
	}
	slices.Sort(result.NewDownloads)
	slices.Sort(result.RemovedDownloads)

	switch delta := len(currentURLs) - len(previousURLs); {
	case delta > 0:
		result.Trend = trendGrew
	case delta < 0:
		result.Trend = trendShrank
	default:
		result.Trend = trendUnchanged
	}

	return result
}

// writeComparisonText writes the comparison in human-readable text format.
func writeComparisonText(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "Run Comparison: %s\n", result.Domain)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nDownloads: %s\n", formatTrend(result.Trend))
	fmt.Fprintf(out, "\nPrevious run: %s\n", result.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  %s\n", result.Current.StartedAt.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nCounters:")
	fmt.Fprintf(out, "  %-12s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 48))
	for _, row := range comparisonRows(result) {
		fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", row.name, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(result.NewDownloads) > 0 {
		fmt.Fprintf(out, "\nNew Downloads (%d):\n", len(result.NewDownloads))
		for _, u := range result.NewDownloads {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}

	if len(result.RemovedDownloads) > 0 {
		fmt.Fprintf(out, "\nRemoved Downloads (%d):\n", len(result.RemovedDownloads))
		for _, u := range result.RemovedDownloads {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d downloads\n", result.UnchangedCount)
	}
}

// writeComparisonMarkdown writes the comparison in Markdown format.
func writeComparisonMarkdown(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "# Run Comparison: %s\n\n", result.Domain)
	fmt.Fprintf(out, "**Downloads:** %s\n\n", formatTrend(result.Trend))

	fmt.Fprintln(out, "| Metric | Previous | Current | Change |")
	fmt.Fprintln(out, "|--------|----------|---------|--------|")
	fmt.Fprintf(out, "| Date | %s | %s | - |\n",
		result.Previous.StartedAt.Format("2006-01-02 15:04"),
		result.Current.StartedAt.Format("2006-01-02 15:04"))
	for _, row := range comparisonRows(result) {
		fmt.Fprintf(out, "| %s | %d | %d | %s |\n", row.name, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(result.NewDownloads) > 0 {
		fmt.Fprintf(out, "\n## New Downloads (%d)\n\n", len(result.NewDownloads))
		for _, u := range result.NewDownloads {
			fmt.Fprintf(out, "- `%s`\n", u)
		}
	}

	if len(result.RemovedDownloads) > 0 {
		fmt.Fprintf(out, "\n## Removed Downloads (%d)\n\n", len(result.RemovedDownloads))
		for _, u := range result.RemovedDownloads {
			fmt.Fprintf(out, "- ~~`%s`~~\n", u)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\n---\n\n*%d downloads unchanged*\n", result.UnchangedCount)
	}
}

type comparisonRow struct {
	name              string
	previous, current int
}

func comparisonRows(result *ComparisonResult) []comparisonRow {
	return []comparisonRow{
		{"Seeds", result.Previous.Seeds, result.Current.Seeds},
		{"Pages", result.Previous.PagesFetched, result.Current.PagesFetched},
		{"Downloads", result.Previous.Downloads, result.Current.Downloads},
		{"Documents", result.Previous.Documents, result.Current.Documents},
	}
}

// formatTrend formats the download trend for display.
func formatTrend(trend string) string {
	switch trend {
	case trendGrew:
		return "GREW (more documents linked)"
	case trendShrank:
		return "SHRANK (fewer documents linked)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
