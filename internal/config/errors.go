package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoDomain is returned when no domain is given on the command line.
	ErrNoDomain = errors.New("no domain specified: provide at least one domain to harvest")

	// ErrInvalidSeedConcurrency is returned when the seed concurrency is not positive.
	ErrInvalidSeedConcurrency = errors.New("invalid seed concurrency: must be positive")

	// ErrInvalidFetchConcurrency is returned when the fetch concurrency is not positive.
	ErrInvalidFetchConcurrency = errors.New("invalid fetch concurrency: must be positive")

	// ErrInvalidWaveSize is returned when the wave size is not positive.
	ErrInvalidWaveSize = errors.New("invalid wave size: must be positive")

	// ErrInvalidDepth is returned when the maximum depth is not positive.
	// A depth of 1 still fetches the seed page itself.
	ErrInvalidDepth = errors.New("invalid depth: must be positive")

	// ErrInvalidTimeout is returned when any of the fetch timeouts is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidRate is returned when the requests-per-second limit is negative.
	ErrInvalidRate = errors.New("invalid rate: requests per second must be non-negative")

	// ErrInvalidMaxBodySize is returned when a body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoUserAgent is returned when the user-agent pool is empty.
	ErrNoUserAgent = errors.New("no user agent configured")

	// ErrNoDownloadExtension is returned when no download extension is configured.
	ErrNoDownloadExtension = errors.New("no download extension configured")
)
