package crawler

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/docharvest/internal/config"
	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// PageFetcher fetches a page. *fetcher.Client satisfies it.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
}

// RobotsPolicy answers whether a URL may be fetched. *robots.Policy
// satisfies it. Implementations must be safe for concurrent use.
type RobotsPolicy interface {
	CanFetch(rawURL string) bool
}

// Spider crawls seeds of one domain. Its fields are set once by NewSpider and
// never change, so a Spider can run many seeds concurrently; all mutable
// traversal state lives in a per-seed frontier.
type Spider struct {
	fetcher         PageFetcher
	policy          RobotsPolicy
	gate            *Gate
	seedConcurrency int
	waveSize        int
	maxDepth        int
	pageTimeout     time.Duration
	downloadExts    []string
	ignorePatterns  []string
	logger          *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithGate sets the fetch gate shared by all seeds.
func WithGate(gate *Gate) SpiderOption {
	return func(s *Spider) {
		s.gate = gate
	}
}

// WithSeedConcurrency sets how many seeds Crawl traverses at once.
func WithSeedConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.seedConcurrency = n
	}
}

// WithWaveSize sets how many tasks are popped and run together.
func WithWaveSize(n int) SpiderOption {
	return func(s *Spider) {
		s.waveSize = n
	}
}

// WithMaxDepth sets the longest hierarchy a task may have and still be
// fetched. A seed has depth 1.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithPageTimeout sets the timeout of a single page fetch.
func WithPageTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.pageTimeout = d
	}
}

// WithDownloadExtensions sets the path suffixes that mark a link as a
// download, e.g. ".pdf".
func WithDownloadExtensions(exts []string) SpiderOption {
	return func(s *Spider) {
		s.downloadExts = exts
	}
}

// WithIgnorePatterns sets URL path patterns that are never followed.
// Patterns use glob syntax (e.g. "/admin/*", "*.zip").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches pages with pageFetcher and obeys
// policy for every page and download.
func NewSpider(pageFetcher PageFetcher, policy RobotsPolicy, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:         pageFetcher,
		policy:          policy,
		seedConcurrency: config.DefaultSeedConcurrency,
		waveSize:        config.DefaultWaveSize,
		maxDepth:        config.DefaultMaxDepth,
		pageTimeout:     config.DefaultPageTimeout,
		downloadExts:    config.DefaultDownloadExtensions,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.gate == nil {
		s.gate = NewGate(config.DefaultFetchConcurrency, 0)
	}
	if s.seedConcurrency < 1 {
		s.seedConcurrency = 1
	}
	if s.waveSize < 1 {
		s.waveSize = 1
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// SeedResult is the outcome of one seed traversal.
type SeedResult struct {
	// Seed is the sitemap entry the traversal started from.
	Seed model.SitemapEntry

	// Downloads are the records emitted in discovery order, not deduplicated.
	Downloads []model.DownloadRecord

	// PagesFetched counts HTML pages that were fetched and parsed.
	PagesFetched int

	// PagesSkipped counts tasks dropped for depth, robots or fetch outcome.
	PagesSkipped int
}

// Result is the outcome of crawling all seeds of a domain.
type Result struct {
	// Seeds holds one result per seed, in seed order.
	Seeds []SeedResult

	// Downloads are all emitted records in seed order, not deduplicated.
	Downloads []model.DownloadRecord

	PagesFetched int
	PagesSkipped int
}

// SitemapURLs returns the set of seed URLs. Links to these pages are never
// followed because every one of them is crawled as a seed of its own.
func SitemapURLs(seeds []model.SitemapEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		set[seed.URL] = struct{}{}
	}
	return set
}

// Crawl traverses every seed, running at most the configured number of
// seeds at once. Seeds never fail: a broken seed yields an empty result.
// When ctx is cancelled Crawl returns what was collected so far together
// with ctx's error.
func (s *Spider) Crawl(ctx context.Context, seeds []model.SitemapEntry) (*Result, error) {
	sitemapURLs := SitemapURLs(seeds)
	results := make([]SeedResult, len(seeds))

	var g errgroup.Group
	g.SetLimit(s.seedConcurrency)
	for i, seed := range seeds {
		g.Go(func() error {
			results[i] = s.CrawlSeed(ctx, seed, sitemapURLs)
			return nil
		})
	}
	_ = g.Wait() // seed traversals never return an error

	result := &Result{Seeds: results}
	for _, r := range results {
		result.Downloads = append(result.Downloads, r.Downloads...)
		result.PagesFetched += r.PagesFetched
		result.PagesSkipped += r.PagesSkipped
	}

	return result, ctx.Err()
}

// CrawlSeed traverses the pages reachable from seed and returns the download
// records found on them. sitemapURLs must not be modified while the call runs.
func (s *Spider) CrawlSeed(ctx context.Context, seed model.SitemapEntry, sitemapURLs map[string]struct{}) SeedResult {
	f := newFrontier(seed, sitemapURLs)
	f.push(model.NewSeedTask(seed))

	s.logger.Debug("crawling seed", "seed", seed.URL)

	for ctx.Err() == nil {
		wave := f.popWave(s.waveSize)
		if len(wave) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, task := range wave {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.processTask(ctx, f, task)
			}()
		}
		wg.Wait()
	}

	result := f.result()
	s.logger.Debug("seed finished",
		"seed", seed.URL,
		"downloads", len(result.Downloads),
		"pages_fetched", result.PagesFetched,
		"pages_skipped", result.PagesSkipped,
	)
	return result
}

// processTask fetches one page and expands the frontier with its links.
// Failures are logged and counted; they never leave the task.
func (s *Spider) processTask(ctx context.Context, f *frontier, task model.CrawlTask) {
	if !f.visit(task.URL) {
		return
	}

	if task.Depth() > s.maxDepth {
		f.skip()
		s.logger.Debug("skipping page", "url", task.URL, "reason", "depth limit", "depth", task.Depth())
		return
	}

	if !s.policy.CanFetch(task.URL) {
		f.skip()
		s.logger.Info("skipping page", "url", task.URL, "reason", "disallowed by robots.txt")
		return
	}

	var resp *fetcher.Response
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = s.fetcher.Get(ctx, task.URL, s.pageTimeout)
		return fetchErr
	})
	if err != nil {
		f.skip()
		s.logger.Warn("failed to fetch page", "url", task.URL, "error", err)
		return
	}

	if !resp.OK() || !resp.IsHTML() {
		f.skip()
		s.logger.Debug("skipping page",
			"url", task.URL,
			"reason", "not an HTML page",
			"status", resp.StatusCode,
			"content_type", resp.ContentType,
		)
		return
	}

	links, err := ExtractLinks(resp.Body, task.URL)
	if err != nil {
		f.skip()
		s.logger.Warn("failed to parse page", "url", task.URL, "error", err)
		return
	}

	f.fetched()
	s.expand(f, task, links)
}

// expand classifies the links of task's page. Downloads are recorded, pages
// that pass every scope check are pushed onto the stack.
func (s *Spider) expand(f *frontier, task model.CrawlTask, links []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, link := range links {
		if webaddr.HasExtension(link, s.downloadExts) {
			if s.policy.CanFetch(link) {
				f.downloads = append(f.downloads, task.Download(link))
			}
			continue
		}

		if s.shouldFollow(f, link) {
			f.stack = append(f.stack, task.Child(link))
		}
	}
}

// shouldFollow reports whether link becomes a new task. f.mu must be held.
//
// Design decision: links on the seed's own host are never followed, only
// sibling hosts of the same registered domain are, because:
//  1. Pages on the seed host are expected to be listed in the sitemap already
//  2. Each of those pages is crawled as a seed of its own
func (s *Spider) shouldFollow(f *frontier, link string) bool {
	if !s.policy.CanFetch(link) {
		return false
	}

	domain, err := webaddr.RegisteredDomain(link)
	if err != nil || f.seedDomain == "" || domain != f.seedDomain {
		return false
	}

	if webaddr.Host(link) == f.seedHost {
		return false
	}

	if _, ok := f.visited[link]; ok {
		return false
	}

	if _, ok := f.sitemapURLs[link]; ok {
		return false
	}

	return !s.isIgnored(link)
}

// isIgnored reports whether the path of link matches an ignore pattern.
func (s *Spider) isIgnored(link string) bool {
	if len(s.ignorePatterns) == 0 {
		return false
	}
	p := webaddr.Path(link)
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a URL path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/users" and "/admin/users/1"
//   - "*.zip" matches "/files/archive.zip"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(urlPath, strings.TrimPrefix(pattern, "*")) {
		return true
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}

	return false
}

// frontier is the traversal state of one seed. It is created per seed and
// never shared between seeds.
//
// Design decision: one mutex guards the stack, the visited set and the
// counters together because:
//  1. A URL is marked visited in the same critical section that checks it,
//     so two tasks of a wave can never both fetch it
//  2. Link classification reads visited and pushes tasks as one step
type frontier struct {
	seed        model.SitemapEntry
	seedHost    string
	seedDomain  string
	sitemapURLs map[string]struct{}

	mu           sync.Mutex
	stack        []model.CrawlTask
	visited      map[string]struct{}
	downloads    []model.DownloadRecord
	pagesFetched int
	pagesSkipped int
}

func newFrontier(seed model.SitemapEntry, sitemapURLs map[string]struct{}) *frontier {
	domain, _ := webaddr.RegisteredDomain(seed.URL)
	return &frontier{
		seed:        seed,
		seedHost:    webaddr.Host(seed.URL),
		seedDomain:  domain,
		sitemapURLs: sitemapURLs,
		visited:     make(map[string]struct{}),
	}
}

func (f *frontier) push(task model.CrawlTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stack = append(f.stack, task)
}

// popWave removes up to n tasks from the top of the stack.
func (f *frontier) popWave(n int) []model.CrawlTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	n = min(n, len(f.stack))
	start := len(f.stack) - n
	wave := make([]model.CrawlTask, n)
	for i := range n {
		wave[i] = f.stack[len(f.stack)-1-i]
	}
	clear(f.stack[start:])
	f.stack = f.stack[:start]
	return wave
}

// visit marks url visited and reports whether it was not visited before.
func (f *frontier) visit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

func (f *frontier) fetched() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pagesFetched++
}

func (f *frontier) skip() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pagesSkipped++
}

func (f *frontier) result() SeedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return SeedResult{
		Seed:         f.seed,
		Downloads:    f.downloads,
		PagesFetched: f.pagesFetched,
		PagesSkipped: f.pagesSkipped,
	}
}
