package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/crawler"
	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/robots"
	"github.com/nao1215/docharvest/internal/sitemap"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// Getter performs the GET requests of the discovery steps.
// *fetcher.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
}

// KnownURLs reports whether a document URL was collected by an earlier run.
type KnownURLs interface {
	ContainsURL(ctx context.Context, rawURL string) (bool, error)
}

// DocumentProcessor turns downloads into documents.
// *processor.Processor satisfies it.
type DocumentProcessor interface {
	Classify(ctx context.Context, rawURL string) model.ContentType
	Process(ctx context.Context, record model.DownloadRecord, contentType model.ContentType) (*model.Document, error)
}

// DocumentStore persists processed documents.
type DocumentStore interface {
	SaveDocuments(ctx context.Context, docs []model.Document) error
}

// SitemapStep normalizes the domain and collects the sitemap seeds.
// An unparseable domain is fatal; a site without a sitemap simply yields
// no seeds and turns the following steps into no-ops.
type SitemapStep struct {
	resolver *sitemap.Resolver
	logger   *slog.Logger
}

// NewSitemapStep creates a sitemap step fetching through getter.
func NewSitemapStep(getter Getter, timeout, nestedTimeout time.Duration, logger *slog.Logger) *SitemapStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapStep{
		resolver: sitemap.NewResolver(getter,
			sitemap.WithTimeout(timeout),
			sitemap.WithNestedTimeout(nestedTimeout),
			sitemap.WithLogger(logger),
		),
		logger: logger,
	}
}

// Name returns the step name.
func (s *SitemapStep) Name() string {
	return "sitemap"
}

// Do executes the sitemap step.
func (s *SitemapStep) Do(ctx context.Context, run *Run) error {
	normalized, err := webaddr.Normalize(run.Report.Domain)
	if err != nil {
		return fmt.Errorf("invalid domain %q: %w", run.Report.Domain, err)
	}
	origin, err := webaddr.Origin(normalized)
	if err != nil {
		return fmt.Errorf("invalid domain %q: %w", run.Report.Domain, err)
	}
	run.Report.Origin = origin

	run.Report.Seeds = s.resolver.Resolve(ctx, run.Report.Domain)
	s.logger.Info("sitemap resolved",
		"domain", run.Report.Domain,
		"seeds", len(run.Report.Seeds),
	)

	return nil
}

// RobotsStep loads the robots.txt policy the crawl obeys, from the origin
// of the first seed. Failing to obtain the policy is fatal: crawling without it is not allowed.
type RobotsStep struct {
	getter  Getter
	timeout time.Duration
	logger  *slog.Logger
}

// NewRobotsStep creates a robots step fetching through getter.
func NewRobotsStep(getter Getter, timeout time.Duration, logger *slog.Logger) *RobotsStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsStep{getter: getter, timeout: timeout, logger: logger}
}

// Name returns the step name.
func (s *RobotsStep) Name() string {
	return "robots"
}

// Do executes the robots step.
func (s *RobotsStep) Do(ctx context.Context, run *Run) error {
	if len(run.Report.Seeds) == 0 {
		s.logger.Debug("skipping robots.txt, no seeds")
		return nil
	}

	// The seeds may live on another host of the site than the domain given.
	origin, err := webaddr.Origin(run.Report.Seeds[0].URL)
	if err != nil {
		return err
	}

	policy, err := robots.Fetch(ctx, s.getter, origin, s.timeout)
	if err != nil {
		return err
	}
	run.Policy = policy
	run.Report.RobotsURL = policy.URL()

	return nil
}

// CrawlStep traverses every seed and collects download records.
//
// Design decision: a fresh fetch gate is created on every Do call because:
//  1. The fetch limit and request rate apply to all seeds of one run together
//  2. Domains of a batch run in parallel and must not share each other's budget
type CrawlStep struct {
	fetcher           crawler.PageFetcher
	fetchConcurrency  int
	requestsPerSecond float64
	spiderOpts        []crawler.SpiderOption
	logger            *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlFetchConcurrency sets the number of page fetches in flight per run.
func WithCrawlFetchConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetchConcurrency = n
	}
}

// WithCrawlRequestsPerSecond throttles the page fetches of a run.
func WithCrawlRequestsPerSecond(rps float64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.requestsPerSecond = rps
	}
}

// WithCrawlSpiderOptions passes options through to the spider.
func WithCrawlSpiderOptions(opts ...crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, opts...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step fetching pages through pageFetcher.
func NewCrawlStep(pageFetcher crawler.PageFetcher, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher:          pageFetcher,
		fetchConcurrency: config.DefaultFetchConcurrency,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. When the context ends mid-crawl the partial
// results are kept and the context error is returned.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	if len(run.Report.Seeds) == 0 || run.Policy == nil {
		s.logger.Debug("skipping crawl, no seeds")
		return nil
	}

	opts := make([]crawler.SpiderOption, 0, len(s.spiderOpts)+2)
	opts = append(opts, s.spiderOpts...)
	opts = append(opts,
		crawler.WithGate(crawler.NewGate(s.fetchConcurrency, s.requestsPerSecond)),
		crawler.WithSpiderLogger(s.logger),
	)
	spider := crawler.NewSpider(s.fetcher, run.Policy, opts...)

	result, err := spider.Crawl(ctx, run.Report.Seeds)
	if result != nil {
		run.Discovered = result.Downloads
		run.Report.PagesFetched = result.PagesFetched
		run.Report.PagesSkipped = result.PagesSkipped
		run.Report.DownloadsDiscovered = len(result.Downloads)
	}

	s.logger.Info("crawl completed",
		"domain", run.Report.Domain,
		"pages_fetched", run.Report.PagesFetched,
		"pages_skipped", run.Report.PagesSkipped,
		"downloads", run.Report.DownloadsDiscovered,
	)

	return err
}

// DedupeStep keeps the freshest record per download URL.
type DedupeStep struct {
	logger *slog.Logger
}

// NewDedupeStep creates a dedupe step.
func NewDedupeStep(logger *slog.Logger) *DedupeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupeStep{logger: logger}
}

// Name returns the step name.
func (s *DedupeStep) Name() string {
	return "dedupe"
}

// Do executes the dedupe step.
func (s *DedupeStep) Do(_ context.Context, run *Run) error {
	run.Report.Downloads = crawler.Dedupe(run.Discovered)
	run.Pending = append([]model.DownloadRecord(nil), run.Report.Downloads...)

	s.logger.Debug("downloads deduplicated",
		"discovered", len(run.Discovered),
		"unique", len(run.Report.Downloads),
	)

	return nil
}

// FilterKnownStep drops pending downloads whose URL an earlier run collected.
// A lookup failure keeps the download.
type FilterKnownStep struct {
	known  KnownURLs
	logger *slog.Logger
}

// NewFilterKnownStep creates a filter step backed by known.
func NewFilterKnownStep(known KnownURLs, logger *slog.Logger) *FilterKnownStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterKnownStep{known: known, logger: logger}
}

// Name returns the step name.
func (s *FilterKnownStep) Name() string {
	return "filter_known"
}

// Do executes the filter step.
func (s *FilterKnownStep) Do(ctx context.Context, run *Run) error {
	kept := run.Pending[:0]
	for _, record := range run.Pending {
		known, err := s.known.ContainsURL(ctx, record.DownloadURL)
		if err != nil {
			s.logger.Warn("failed to look up download", "url", record.DownloadURL, "error", err)
		}
		if known {
			run.Report.SkippedKnown++
			continue
		}
		kept = append(kept, record)
	}
	run.Pending = kept

	return nil
}

// ProcessStep classifies every pending download and processes the ones of
// an accepted content type.
type ProcessStep struct {
	processor DocumentProcessor
	accepted  map[model.ContentType]struct{}
	logger    *slog.Logger
}

// NewProcessStep creates a process step that accepts the given content types.
func NewProcessStep(processor DocumentProcessor, acceptedTypes []string, logger *slog.Logger) *ProcessStep {
	if logger == nil {
		logger = slog.Default()
	}
	accepted := make(map[model.ContentType]struct{}, len(acceptedTypes))
	for _, t := range acceptedTypes {
		accepted[model.ParseContentType(t)] = struct{}{}
	}
	return &ProcessStep{processor: processor, accepted: accepted, logger: logger}
}

// Name returns the step name.
func (s *ProcessStep) Name() string {
	return "process"
}

// Do executes the process step.
func (s *ProcessStep) Do(ctx context.Context, run *Run) error {
	if run.Report.SkippedDocuments == nil {
		run.Report.SkippedDocuments = make(map[model.ContentType]int)
	}

	for _, record := range run.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		contentType := s.processor.Classify(ctx, record.DownloadURL)
		if _, ok := s.accepted[contentType]; !ok || contentType == model.ContentTypeErrorFetching {
			s.logger.Debug("skipping document", "url", record.DownloadURL, "content_type", contentType)
			run.Report.SkippedDocuments[contentType]++
			continue
		}

		doc, err := s.processor.Process(ctx, record, contentType)
		if err != nil {
			s.logger.Warn("failed to process document", "url", record.DownloadURL, "error", err)
			run.Report.SkippedDocuments[contentType]++
			continue
		}
		run.Report.Documents = append(run.Report.Documents, *doc)
	}

	s.logger.Info("documents processed",
		"domain", run.Report.Domain,
		"documents", len(run.Report.Documents),
	)

	return nil
}

// StoreStep saves the processed documents.
type StoreStep struct {
	store DocumentStore
}

// NewStoreStep creates a store step.
func NewStoreStep(store DocumentStore) *StoreStep {
	return &StoreStep{store: store}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do executes the store step.
func (s *StoreStep) Do(ctx context.Context, run *Run) error {
	if len(run.Report.Documents) == 0 {
		return nil
	}
	if err := s.store.SaveDocuments(ctx, run.Report.Documents); err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// SeedConcurrency is the number of seeds traversed at once.
	SeedConcurrency int

	// FetchConcurrency is the number of page fetches in flight per run.
	FetchConcurrency int

	// RequestsPerSecond throttles page fetches when positive.
	RequestsPerSecond float64

	// WaveSize is the number of tasks popped per wave.
	WaveSize int

	// MaxDepth is the longest hierarchy still fetched.
	MaxDepth int

	// PageTimeout bounds a page fetch.
	PageTimeout time.Duration

	// SitemapTimeout bounds the top-level sitemap fetches.
	SitemapTimeout time.Duration

	// NestedSitemapTimeout bounds nested sitemap fetches.
	NestedSitemapTimeout time.Duration

	// RobotsTimeout bounds the robots.txt fetch.
	RobotsTimeout time.Duration

	// DownloadExtensions lists path suffixes that mark a download.
	DownloadExtensions []string

	// IgnorePatterns are path globs of pages never followed.
	IgnorePatterns []string

	// AcceptedTypes lists the content types handed to the processor.
	AcceptedTypes []string

	// DiscoverOnly stops the pipeline after deduplication.
	DiscoverOnly bool

	// Processor processes downloads. Without one the pipeline stops after
	// deduplication.
	Processor DocumentProcessor

	// Known filters downloads collected earlier. Optional.
	Known KnownURLs

	// Store saves processed documents. Optional.
	Store DocumentStore
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineConcurrency sets the seed and fetch concurrency limits.
func WithPipelineConcurrency(seeds, fetches int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SeedConcurrency = seeds
		c.FetchConcurrency = fetches
	}
}

// WithPipelineRequestsPerSecond throttles page fetches.
func WithPipelineRequestsPerSecond(rps float64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RequestsPerSecond = rps
	}
}

// WithPipelineWaveSize sets the number of tasks popped per wave.
func WithPipelineWaveSize(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.WaveSize = n
	}
}

// WithPipelineMaxDepth sets the longest hierarchy still fetched.
func WithPipelineMaxDepth(depth int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxDepth = depth
	}
}

// WithPipelineTimeouts sets the page, sitemap, nested sitemap and robots timeouts.
// Zero values keep the current setting.
func WithPipelineTimeouts(page, sitemapTimeout, nestedSitemap, robotsTimeout time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if page > 0 {
			c.PageTimeout = page
		}
		if sitemapTimeout > 0 {
			c.SitemapTimeout = sitemapTimeout
		}
		if nestedSitemap > 0 {
			c.NestedSitemapTimeout = nestedSitemap
		}
		if robotsTimeout > 0 {
			c.RobotsTimeout = robotsTimeout
		}
	}
}

// WithPipelineDownloadExtensions sets the path suffixes that mark a download.
func WithPipelineDownloadExtensions(exts []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DownloadExtensions = exts
	}
}

// WithPipelineIgnorePatterns sets path globs of pages never followed.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineAcceptedTypes sets the content types handed to the processor.
func WithPipelineAcceptedTypes(types []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AcceptedTypes = types
	}
}

// WithPipelineDiscoverOnly stops the pipeline after deduplication.
func WithPipelineDiscoverOnly(discoverOnly bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DiscoverOnly = discoverOnly
	}
}

// WithPipelineProcessor sets the document processor.
func WithPipelineProcessor(processor DocumentProcessor) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Processor = processor
	}
}

// WithPipelineKnownURLs sets the known-URL filter.
func WithPipelineKnownURLs(known KnownURLs) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Known = known
	}
}

// WithPipelineStore sets the document store.
func WithPipelineStore(store DocumentStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// DefaultPipeline creates the pipeline of a harvest run:
// sitemap, robots, crawl and dedupe, then, unless DiscoverOnly is set or no
// processor is configured, filter_known, process and store.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineMaxDepth, etc).
func DefaultPipeline(getter Getter, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		SeedConcurrency:      config.DefaultSeedConcurrency,
		FetchConcurrency:     config.DefaultFetchConcurrency,
		WaveSize:             config.DefaultWaveSize,
		MaxDepth:             config.DefaultMaxDepth,
		PageTimeout:          config.DefaultPageTimeout,
		SitemapTimeout:       config.DefaultSitemapTimeout,
		NestedSitemapTimeout: config.DefaultNestedSitemapTimeout,
		RobotsTimeout:        config.DefaultRobotsTimeout,
		DownloadExtensions:   config.DefaultDownloadExtensions,
		AcceptedTypes:        config.DefaultAcceptedTypes,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithSeedConcurrency(cfg.SeedConcurrency),
		crawler.WithWaveSize(cfg.WaveSize),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithPageTimeout(cfg.PageTimeout),
		crawler.WithDownloadExtensions(cfg.DownloadExtensions),
	}
	if len(cfg.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(cfg.IgnorePatterns))
	}

	p.AddSteps(
		NewSitemapStep(getter, cfg.SitemapTimeout, cfg.NestedSitemapTimeout, p.logger),
		NewRobotsStep(getter, cfg.RobotsTimeout, p.logger),
		NewCrawlStep(getter,
			WithCrawlFetchConcurrency(cfg.FetchConcurrency),
			WithCrawlRequestsPerSecond(cfg.RequestsPerSecond),
			WithCrawlSpiderOptions(spiderOpts...),
			WithCrawlLogger(p.logger),
		),
		NewDedupeStep(p.logger),
	)

	if cfg.DiscoverOnly || cfg.Processor == nil {
		return p
	}

	if cfg.Known != nil {
		p.AddStep(NewFilterKnownStep(cfg.Known, p.logger))
	}
	p.AddStep(NewProcessStep(cfg.Processor, cfg.AcceptedTypes, p.logger))
	if cfg.Store != nil {
		p.AddStep(NewStoreStep(cfg.Store))
	}

	return p
}
