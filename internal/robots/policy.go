package robots

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/nao1215/docharvest/internal/fetcher"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// wildcardAgent is the user agent the rules are evaluated for. Requests use
// rotating browser user agents, so only the "*" group applies to them.
const wildcardAgent = "*"

// Getter fetches a URL. *fetcher.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetcher.Response, error)
}

// Policy answers whether a URL may be fetched. It is built once per run and
// is read-only afterwards, so it is safe for concurrent use.
type Policy struct {
	url  string
	data *robotstxt.RobotsData
}

// Fetch downloads and parses {origin of siteURL}/robots.txt.
//
// Status handling follows the usual robots.txt conventions: 2xx bodies are
// parsed, 401 and 403 disallow everything, other 4xx allow everything and 5xx
// disallow everything. A transport failure returns ErrRobotsUnavailable and a
// body that cannot be parsed returns ErrRobotsUnparseable; the run must not
// continue without a policy in either case.
func Fetch(ctx context.Context, getter Getter, siteURL string, timeout time.Duration) (*Policy, error) {
	origin, err := webaddr.Origin(siteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRobotsUnavailable, err)
	}
	robotsURL := origin + "/robots.txt"

	resp, err := getter.Get(ctx, robotsURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRobotsUnavailable, robotsURL, err)
	}

	var data *robotstxt.RobotsData
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		data, err = robotstxt.FromString("User-agent: *\nDisallow: /\n")
	default:
		data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRobotsUnparseable, robotsURL, err)
	}

	return &Policy{url: robotsURL, data: data}, nil
}

// Parse builds a policy from robots.txt content.
func Parse(body []byte) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRobotsUnparseable, err)
	}
	return &Policy{data: data}, nil
}

// URL returns the robots.txt location the policy was fetched from.
func (p *Policy) URL() string {
	return p.url
}

// CanFetch reports whether the wildcard agent may fetch rawURL.
func (p *Policy) CanFetch(rawURL string) bool {
	return p.data.TestAgent(webaddr.Path(rawURL), wildcardAgent)
}
