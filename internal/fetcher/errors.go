package fetcher

import "errors"

var (
	// ErrNoUserAgent is returned by New when the user-agent pool is empty.
	ErrNoUserAgent = errors.New("user agent pool is empty")

	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTimeout is returned when a request does not finish within its timeout.
	ErrTimeout = errors.New("request timed out")
)
