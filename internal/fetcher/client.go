package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// Browser-like request headers sent with every request.
const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
	acceptEncodingHeader = "gzip, deflate, br"
)

// maxRedirects matches net/http's default redirect policy.
const maxRedirects = 10

// defaultMaxBodySize applies when no body size option is given.
const defaultMaxBodySize = 5 * 1024 * 1024

// Response is a fetched and decoded HTTP response.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status code of the final response.
	StatusCode int

	// ContentType is the raw Content-Type header.
	ContentType string

	// Header holds all response headers.
	Header http.Header

	// Body is the decoded body, truncated to the client's size limit.
	Body []byte

	// Truncated is true when Body was cut at the size limit.
	Truncated bool
}

// OK reports whether the status code is 200.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// IsHTML reports whether the response declares a text/html body.
func (r *Response) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

// IsXML reports whether the content type mentions xml.
func (r *Response) IsXML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "xml")
}

// Client performs browser-like HTTP requests.
//
// Every request carries a User-Agent drawn at random from the configured pool
// plus the usual browser Accept headers. Compressed bodies (gzip, deflate,
// br) are decoded and reads are capped at the configured body size. Redirects
// are followed. A Client is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	userAgents  []string
	headers     map[string]string
	cookie      string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient   *http.Client
	userAgents   []string
	headers      map[string]string
	cookie       string
	maxBodySize  int64
	proxyAddress string
	logger       *slog.Logger
}

// WithHTTPClient uses client instead of building one. Proxy settings are
// ignored in that case.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithUserAgents sets the pool a User-Agent is drawn from for each request.
func WithUserAgents(agents []string) Option {
	return func(o *clientOptions) {
		o.userAgents = agents
	}
}

// WithHeaders adds headers to every request. They override the defaults.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithCookie sends a raw cookie string with every request.
func WithCookie(cookie string) Option {
	return func(o *clientOptions) {
		o.cookie = cookie
	}
}

// WithMaxBodySize caps the number of decoded body bytes kept per response.
func WithMaxBodySize(size int64) Option {
	return func(o *clientOptions) {
		o.maxBodySize = size
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	o := &clientOptions{
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if len(o.userAgents) == 0 {
		return nil, ErrNoUserAgent
	}
	if o.maxBodySize <= 0 {
		o.maxBodySize = defaultMaxBodySize
	}

	httpClient := o.httpClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(o.proxyAddress)
		if err != nil {
			return nil, err
		}
	}

	headers := make(map[string]string, len(o.headers))
	for k, v := range o.headers {
		headers[k] = v
	}

	return &Client{
		httpClient:  httpClient,
		userAgents:  append([]string(nil), o.userAgents...),
		headers:     headers,
		cookie:      o.cookie,
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
	}, nil
}

// newHTTPClient builds the transport, optionally dialing through SOCKS5.
func newHTTPClient(proxyAddress string) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Bodies are decoded by readBody because Accept-Encoding is set explicitly.
		DisableCompression: true,
	}

	if proxyAddress != "" {
		if _, _, err := net.SplitHostPort(proxyAddress); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProxyAddress, proxyAddress)
		}
		socks, err := proxy.SOCKS5("tcp", proxyAddress, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: dialer does not support contexts", ErrInvalidProxyAddress)
		}
		transport.DialContext = contextDialer.DialContext
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// Get fetches rawURL with the given timeout. A non-2xx status is not an
// error; callers decide what a usable response is.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, timeout)
}

// Head issues a HEAD request for rawURL with the given timeout.
func (c *Client) Head(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL, timeout)
}

func (c *Client) do(ctx context.Context, method, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, rawURL)
		}
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	result := &Response{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header.Clone(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	if method == http.MethodHead {
		return result, nil
	}

	body, truncated, err := c.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	result.Body = body
	result.Truncated = truncated
	if truncated {
		c.logger.Debug("response body truncated", "url", rawURL, "limit", c.maxBodySize)
	}

	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)
	req.Header.Set("Accept-Encoding", acceptEncodingHeader)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) userAgent() string {
	return c.userAgents[rand.IntN(len(c.userAgents))] //nolint:gosec // not security sensitive
}

// readBody decodes the body according to Content-Encoding and reads at most
// maxBodySize bytes of it.
func (c *Client) readBody(resp *http.Response) ([]byte, bool, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		br := bufio.NewReader(resp.Body)
		if header, err := br.Peek(2); err == nil && isZlibHeader(header) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, false, fmt.Errorf("deflate decode: %w", err)
			}
			defer zr.Close()
			reader = zr
			break
		}
		// Some servers send raw DEFLATE without the zlib wrapper.
		fl := flate.NewReader(br)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, c.maxBodySize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > c.maxBodySize {
		return body[:c.maxBodySize], true, nil
	}
	return body, false, nil
}

// isZlibHeader reports whether b starts a zlib stream (RFC 1950): DEFLATE
// compression method and a header checksum divisible by 31.
func isZlibHeader(b []byte) bool {
	return len(b) >= 2 && b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
