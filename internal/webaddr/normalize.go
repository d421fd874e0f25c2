package webaddr

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Normalize returns the canonical form of a web address.
//
// The canonical form is https://host/path where:
//   - the scheme is always https, so http and https links to the same
//     resource share one key
//   - the host is lowercase and keeps its port
//   - a host of exactly two labels gets a "www." prefix
//   - trailing slashes are removed from the path
//   - query and fragment are dropped
//
// Normalize is idempotent. It returns ErrUnparseable when raw has no host or
// no registered domain can be derived from the host.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty address", ErrUnparseable)
	}

	if !hasHTTPScheme(raw) {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrUnparseable, raw)
	}

	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	if _, err := publicsuffix.EffectiveTLDPlusOne(hostname); err != nil {
		return "", fmt.Errorf("%w: %q has no registered domain", ErrUnparseable, hostname)
	}
	if strings.Count(hostname, ".") == 1 {
		host = "www." + host
	}

	path := strings.TrimRight(u.EscapedPath(), "/")

	return "https://" + host + path, nil
}

// hasHTTPScheme reports whether raw starts with http:// or https://,
// ignoring case.
func hasHTTPScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsHTTP reports whether raw is an absolute http or https URL.
func IsHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Origin returns scheme://host of an absolute URL.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Host returns the host of an absolute URL, including any port.
// It returns an empty string when raw cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// RegisteredDomain returns the public-suffix registered domain (eTLD+1) of an
// absolute URL, e.g. "example.co.uk" for https://docs.example.co.uk/a.
func RegisteredDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return domain, nil
}

// Source returns the label of the registered domain without its public
// suffix, e.g. "example" for https://docs.example.co.uk/a.
func Source(raw string) string {
	domain, err := RegisteredDomain(raw)
	if err != nil {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return label
}

// HasExtension reports whether the path of raw ends with one of exts,
// ignoring case.
func HasExtension(raw string, exts []string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(path, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Path returns the escaped path of raw, or "/" when it is empty.
func Path(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.EscapedPath() == "" {
		return "/"
	}
	return u.EscapedPath()
}
