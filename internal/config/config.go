package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "docharvest"

	// DefaultSeedConcurrency is the number of seed traversals that may run at once.
	DefaultSeedConcurrency = 7

	// DefaultFetchConcurrency is the number of page fetches that may be in flight
	// at once across every seed of a run.
	DefaultFetchConcurrency = 25

	// DefaultWaveSize is the number of tasks popped from a seed's stack per wave.
	DefaultWaveSize = 10

	// DefaultMaxDepth is the longest hierarchy a task may have and still be fetched.
	DefaultMaxDepth = 5

	// DefaultPageTimeout bounds a single page fetch.
	DefaultPageTimeout = 15 * time.Second

	// DefaultSitemapTimeout bounds the sitemap.xml and sitemap_index.xml fetches.
	DefaultSitemapTimeout = 10 * time.Second

	// DefaultNestedSitemapTimeout bounds each nested sitemap fetch.
	// Nested sitemaps on large sites are often several megabytes.
	DefaultNestedSitemapTimeout = 30 * time.Second

	// DefaultRobotsTimeout bounds the robots.txt fetch.
	DefaultRobotsTimeout = 10 * time.Second

	// DefaultDocumentTimeout bounds the HEAD and GET requests of document processing.
	DefaultDocumentTimeout = 60 * time.Second

	// DefaultMaxBodySize limits the bytes read from a page or sitemap response.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMaxDocumentSize limits the bytes read from a harvested document.
	DefaultMaxDocumentSize = 20 * 1024 * 1024 // 20MB

	// DefaultBatchSize is the number of domains harvested concurrently.
	DefaultBatchSize = 1
)

// DefaultUserAgents is the browser user-agent pool. One entry is chosen at
// random for every request.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// DefaultDownloadExtensions lists the path suffixes treated as downloadable documents.
var DefaultDownloadExtensions = []string{".pdf"}

// DefaultAcceptedTypes lists the content types handed to the document processor.
var DefaultAcceptedTypes = []string{"pdf"}

// Config holds all configuration options for docharvest.
// It is populated from defaults, CLI flags and the optional site file, then
// passed down explicitly; no package keeps global configuration state.
type Config struct {
	// Domains is the list of domains to harvest.
	Domains []string

	// SeedConcurrency bounds how many seed traversals run at the same time.
	SeedConcurrency int

	// FetchConcurrency bounds how many page fetches are in flight across all seeds.
	FetchConcurrency int

	// WaveSize is the number of tasks popped from the stack per wave.
	WaveSize int

	// MaxDepth is the longest hierarchy that is still fetched.
	// A site file may override it per domain.
	MaxDepth int

	// PageTimeout bounds each page fetch.
	PageTimeout time.Duration

	// SitemapTimeout bounds the top-level sitemap fetches.
	SitemapTimeout time.Duration

	// NestedSitemapTimeout bounds nested sitemap fetches.
	NestedSitemapTimeout time.Duration

	// RobotsTimeout bounds the robots.txt fetch.
	RobotsTimeout time.Duration

	// DocumentTimeout bounds document classification and download.
	DocumentTimeout time.Duration

	// RequestsPerSecond throttles page fetches of a run when positive.
	// Zero disables throttling; the fetch gate alone bounds the load.
	RequestsPerSecond float64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UserAgents is the pool a User-Agent header is drawn from per request.
	UserAgents []string

	// DownloadExtensions lists path suffixes that mark a link as a download.
	DownloadExtensions []string

	// AcceptedTypes lists the content types passed on to document processing.
	AcceptedTypes []string

	// MaxBodySize is the maximum number of bytes read from a page.
	MaxBodySize int64

	// MaxDocumentSize is the maximum number of bytes read from a document.
	MaxDocumentSize int64

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON lines.
	LogJSON bool

	// BatchSize is the number of domains harvested concurrently.
	BatchSize int

	// ConfigFilePath is the path to the site file. When empty, .docharvest is
	// searched for in the current and the home directory.
	ConfigFilePath string

	// SiteConfigs holds the per-domain settings loaded from the site file.
	SiteConfigs *File

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output path for the report; stdout when empty.
	ReportFile string

	// DBDir is the directory of the SQLite store.
	DBDir string

	// SaveToDB persists documents and run reports to the store.
	SaveToDB bool

	// SkipKnown drops downloads whose URL is already in the store.
	SkipKnown bool

	// DiscoverOnly stops a run after deduplication; nothing is downloaded.
	DiscoverOnly bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SeedConcurrency:      DefaultSeedConcurrency,
		FetchConcurrency:     DefaultFetchConcurrency,
		WaveSize:             DefaultWaveSize,
		MaxDepth:             DefaultMaxDepth,
		PageTimeout:          DefaultPageTimeout,
		SitemapTimeout:       DefaultSitemapTimeout,
		NestedSitemapTimeout: DefaultNestedSitemapTimeout,
		RobotsTimeout:        DefaultRobotsTimeout,
		DocumentTimeout:      DefaultDocumentTimeout,
		UserAgents:           append([]string(nil), DefaultUserAgents...),
		DownloadExtensions:   append([]string(nil), DefaultDownloadExtensions...),
		AcceptedTypes:        append([]string(nil), DefaultAcceptedTypes...),
		MaxBodySize:          DefaultMaxBodySize,
		MaxDocumentSize:      DefaultMaxDocumentSize,
		BatchSize:            DefaultBatchSize,
		SaveToDB:             true,
		SkipKnown:            true,
	}
}

// XDGDataDir returns the XDG data directory for docharvest.
// On Linux: ~/.local/share/docharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for docharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// SiteFor returns the merged site configuration for domain.
// Lookup tries the domain as given, then without a leading "www.".
func (c *Config) SiteFor(domain string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(domain)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return ErrNoDomain
	}
	if c.SeedConcurrency <= 0 {
		return ErrInvalidSeedConcurrency
	}
	if c.FetchConcurrency <= 0 {
		return ErrInvalidFetchConcurrency
	}
	if c.WaveSize <= 0 {
		return ErrInvalidWaveSize
	}
	if c.MaxDepth <= 0 {
		return ErrInvalidDepth
	}
	if c.PageTimeout <= 0 || c.SitemapTimeout <= 0 || c.NestedSitemapTimeout <= 0 ||
		c.RobotsTimeout <= 0 || c.DocumentTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 || c.MaxDocumentSize < 0 {
		return ErrInvalidMaxBodySize
	}
	if len(c.UserAgents) == 0 {
		return ErrNoUserAgent
	}
	if len(c.DownloadExtensions) == 0 {
		return ErrNoDownloadExtension
	}
	return nil
}
