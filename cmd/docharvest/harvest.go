package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/database"
	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/pipeline"
	"github.com/nao1215/docharvest/internal/processor"
	"github.com/nao1215/docharvest/internal/report"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// NewHarvestCmd creates the harvest command.
func NewHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [domain...]",
		Short: "Discover and collect documents linked from a website",
		Long: `Harvest discovers downloadable documents on one or more domains.

For each domain it:
- Reads sitemap.xml and sitemap_index.xml (nested and gzipped sitemaps included)
- Fetches robots.txt and never requests a disallowed page
- Walks every sitemap page in waves, following same-site links up to --depth
- Deduplicates documents, keeping the most recently modified discovery
- Downloads new documents, extracts title, metadata and a text snippet
- Stores documents and the run report in the local database

Examples:
  # Harvest one domain
  docharvest harvest example.com

  # Harvest three domains, two at a time
  docharvest harvest --batch 2 example.com example.org example.net

  # Only list the documents, download nothing
  docharvest harvest --discover-only example.com

  # Be gentle: at most 2 page requests per second
  docharvest harvest --rps 2 example.com

  # Write a Markdown report
  docharvest harvest -m -o report.md example.com

Site file (.docharvest) example:
  sites:
    example.com:
      cookie: "session=abc123"
      depth: 8
      ignorePatterns:
        - "/search*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runHarvestCmd,
	}

	// Concurrency flags
	cmd.Flags().Int("seeds", config.DefaultSeedConcurrency,
		"Number of sitemap pages traversed concurrently")
	cmd.Flags().Int("fetches", config.DefaultFetchConcurrency,
		"Maximum page fetches in flight per domain")
	cmd.Flags().Int("wave", config.DefaultWaveSize,
		"Number of pages fetched per traversal wave")
	cmd.Flags().Float64("rps", 0,
		"Maximum page requests per second per domain (0 = unlimited)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of domains harvested concurrently")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum page hierarchy length")
	cmd.Flags().DurationP("timeout", "t", config.DefaultPageTimeout,
		"Timeout for each page request")
	cmd.Flags().Duration("sitemap-timeout", config.DefaultSitemapTimeout,
		"Timeout for sitemap.xml and sitemap_index.xml")
	cmd.Flags().Duration("nested-sitemap-timeout", config.DefaultNestedSitemapTimeout,
		"Timeout for each nested sitemap")
	cmd.Flags().Duration("robots-timeout", config.DefaultRobotsTimeout,
		"Timeout for robots.txt")
	cmd.Flags().Duration("document-timeout", config.DefaultDocumentTimeout,
		"Timeout for each document request")
	cmd.Flags().StringSlice("ext", config.DefaultDownloadExtensions,
		"Path extensions treated as documents")
	cmd.Flags().StringSlice("accept", config.DefaultAcceptedTypes,
		"Content types that are downloaded and processed")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().BoolP("discover-only", "D", false,
		"Stop after discovery; download nothing")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site file path (default: .docharvest in current or home directory)")

	// Storage flags
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-save", false,
		"Do not store documents and run reports")
	cmd.Flags().Bool("no-skip-known", false,
		"Process documents even if they are already stored")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runHarvestCmd executes the harvest command.
func runHarvestCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runHarvest(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.SeedConcurrency, err = flags.GetInt("seeds"); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = flags.GetInt("fetches"); err != nil {
		return nil, err
	}
	if cfg.WaveSize, err = flags.GetInt("wave"); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond, err = flags.GetFloat64("rps"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.PageTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.SitemapTimeout, err = flags.GetDuration("sitemap-timeout"); err != nil {
		return nil, err
	}
	if cfg.NestedSitemapTimeout, err = flags.GetDuration("nested-sitemap-timeout"); err != nil {
		return nil, err
	}
	if cfg.RobotsTimeout, err = flags.GetDuration("robots-timeout"); err != nil {
		return nil, err
	}
	if cfg.DocumentTimeout, err = flags.GetDuration("document-timeout"); err != nil {
		return nil, err
	}
	if cfg.DownloadExtensions, err = flags.GetStringSlice("ext"); err != nil {
		return nil, err
	}
	if cfg.AcceptedTypes, err = flags.GetStringSlice("accept"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.DiscoverOnly, err = flags.GetBool("discover-only"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly given site file must exist; the implicit ones are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	cfg.DBDir = dbDir
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	noSkipKnown, err := flags.GetBool("no-skip-known")
	if err != nil {
		return nil, err
	}
	cfg.SkipKnown = !noSkipKnown

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.Domains = args

	return cfg, nil
}

// runHarvest harvests every configured domain and writes the reports to out,
// or to cfg.ReportFile when set. clientOpts are applied to every HTTP client
// after the configured ones.
func runHarvest(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, clientOpts ...fetcher.Option) error {
	logger.Info("starting harvest",
		"domains", cfg.Domains,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
		"discoverOnly", cfg.DiscoverOnly,
	)

	var db *database.DocumentDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, db, logger, clientOpts...),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	// Reports stream out as domains finish; the callback runs concurrently
	// when the batch size is above one.
	var (
		mu      sync.Mutex
		reports []*model.HarvestReport
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Domains, func(r *model.HarvestReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		logger.Info("harvest finished",
			"domain", r.Domain,
			"progress", fmt.Sprintf("%d/%d", len(reports)+1, len(cfg.Domains)),
			"index", index,
			"downloads", len(r.Downloads),
			"documents", len(r.Documents),
			"error", r.ErrorMessage,
		)
		reports = append(reports, r)

		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "domain", r.Domain, "error", err)
		}

		if err := saveRunReport(ctx, db, r, logger); err != nil {
			logger.Error("failed to save run report", "domain", r.Domain, "error", err)
		}
	})

	logger.Info("harvest completed",
		"domains", len(cfg.Domains),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	if len(reports) > 1 {
		summaries := make([]model.Summary, 0, len(reports))
		for _, r := range reports {
			summaries = append(summaries, r.Summarize())
		}
		if _, werr := writer.WriteSummaries(summaries); werr != nil {
			logger.Error("summary failed", "error", werr)
		}
	}

	if err != nil {
		return err
	}
	return failedDomainsError(reports)
}

// failedDomainsError reports the domains whose run stopped with an error.
// Runs that were only cut short by their deadline still count as done.
func failedDomainsError(reports []*model.HarvestReport) error {
	var failed []string
	for _, r := range reports {
		if r.Failed() && !r.TimedOut {
			failed = append(failed, r.Domain)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	slices.Sort(failed)
	return fmt.Errorf("harvest failed for %d of %d domain(s): %v", len(failed), len(reports), failed)
}

// newPipelineFactory returns a factory that builds one pipeline per domain,
// merging the domain's site settings over the global configuration.
func newPipelineFactory(cfg *config.Config, db *database.DocumentDB, logger *slog.Logger, extraClientOpts ...fetcher.Option) pipeline.Factory {
	return func(domain string) (*pipeline.Pipeline, error) {
		site := cfg.SiteFor(siteKey(domain))
		domainLogger := logger.With("domain", domain)

		userAgents := cfg.UserAgents
		if len(site.UserAgents) > 0 {
			userAgents = site.UserAgents
		}
		maxDepth := cfg.MaxDepth
		if site.Depth > 0 {
			maxDepth = site.Depth
		}
		extensions := cfg.DownloadExtensions
		if len(site.DownloadExtensions) > 0 {
			extensions = site.DownloadExtensions
		}

		clientOpts := []fetcher.Option{
			fetcher.WithUserAgents(userAgents),
			fetcher.WithHeaders(site.Headers),
			fetcher.WithCookie(site.Cookie),
			fetcher.WithProxy(cfg.ProxyAddress),
			fetcher.WithLogger(domainLogger),
		}
		clientOpts = append(clientOpts, extraClientOpts...)

		pages, err := fetcher.New(append(slices.Clone(clientOpts), fetcher.WithMaxBodySize(cfg.MaxBodySize))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create page client: %w", err)
		}

		configOpts := []pipeline.DefaultPipelineOption{
			pipeline.WithPipelineConcurrency(cfg.SeedConcurrency, cfg.FetchConcurrency),
			pipeline.WithPipelineRequestsPerSecond(cfg.RequestsPerSecond),
			pipeline.WithPipelineWaveSize(cfg.WaveSize),
			pipeline.WithPipelineMaxDepth(maxDepth),
			pipeline.WithPipelineTimeouts(cfg.PageTimeout, cfg.SitemapTimeout, cfg.NestedSitemapTimeout, cfg.RobotsTimeout),
			pipeline.WithPipelineDownloadExtensions(extensions),
			pipeline.WithPipelineIgnorePatterns(site.IgnorePatterns),
			pipeline.WithPipelineAcceptedTypes(cfg.AcceptedTypes),
			pipeline.WithPipelineDiscoverOnly(cfg.DiscoverOnly),
		}

		if !cfg.DiscoverOnly {
			documents, err := fetcher.New(append(slices.Clone(clientOpts), fetcher.WithMaxBodySize(cfg.MaxDocumentSize))...)
			if err != nil {
				return nil, fmt.Errorf("failed to create document client: %w", err)
			}
			configOpts = append(configOpts, pipeline.WithPipelineProcessor(processor.New(documents,
				processor.WithTimeout(cfg.DocumentTimeout),
				processor.WithLogger(domainLogger),
			)))

			if db != nil {
				if cfg.SkipKnown {
					configOpts = append(configOpts, pipeline.WithPipelineKnownURLs(db))
				}
				configOpts = append(configOpts, pipeline.WithPipelineStore(db))
			}
		}

		pipelineOpts := []pipeline.Option{
			pipeline.WithLogger(domainLogger),
		}

		return pipeline.DefaultPipeline(pages, pipelineOpts, configOpts...), nil
	}
}

// siteKey reduces a domain argument to the host used for site file lookup.
func siteKey(domain string) string {
	normalized, err := webaddr.Normalize(domain)
	if err != nil {
		return domain
	}
	if host := webaddr.Host(normalized); host != "" {
		return host
	}
	return domain
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput returns the report destination: the file at path, or
// fallback when path is empty. The returned function closes the file.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain cookies in URLs; only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // best effort on a write-only file
}

// saveRunReport stores the run report. If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.DocumentDB, r *model.HarvestReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled run is still recorded.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	if err := db.SaveRunReport(ctx, r); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run report saved to database", "domain", r.Domain, "runID", r.RunID)
	return nil
}
