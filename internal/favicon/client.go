// Package favicon fetches site icons over HTTP.
package favicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nikbrunner/favmark/internal/model"
)

const (
	// DefaultTimeout bounds each individual request.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBytes is the largest icon payload accepted.
	DefaultMaxBytes = 512 << 10
	// DefaultUserAgent mimics a desktop browser; some hosts refuse bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// GoogleService is a favicon service template; %s is replaced by the host.
	GoogleService = "https://www.google.com/s2/favicons?domain=%s&sz=64"

	maxPageBytes  = 256 << 10
	maxCandidates = 6
	maxRedirects  = 10
)

var errUnusable = errors.New("no usable icon")

// Result is the outcome of fetching one site's icon.
type Result struct {
	Payload []byte
	Format  string
	Outcome model.FetchOutcome
	Source  string // candidate URL that produced Payload
	Err     error  // last failure, nil when Outcome is ok
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	HTTPClient      *http.Client
	Timeout         time.Duration
	MaxBytes        int64
	UserAgent       string
	FallbackService string // empty disables the third-party fallback
	Logger          *slog.Logger
}

// Client fetches icons. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	fallback  string
	logger    *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		http:      opts.HTTPClient,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		fallback:  opts.FallbackService,
		logger:    opts.Logger,
	}
}

// Fetch resolves the icon for origin (scheme://host[:port]). Candidates are
// tried in order: the well-known /favicon.ico, icons declared by the home
// page, then the fallback service. The first usable image wins.
//
// The outcome is network_error when no candidate succeeded and at least one
// attempt failed in transport or with a transient status (5xx, 429);
// otherwise not_found.
func (c *Client) Fetch(ctx context.Context, origin string) Result {
	base, err := url.Parse(origin)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return Result{Outcome: model.OutcomeNotFound, Err: fmt.Errorf("%w: %q", model.ErrInvalidURL, origin)}
	}

	var lastErr error
	transient := false
	record := func(u string, err error) {
		lastErr = err
		if errors.Is(err, model.ErrNetwork) {
			transient = true
		}
		c.logger.Debug("icon candidate failed", "url", u, "error", err)
	}

	tried := map[string]bool{}
	try := func(u string) (Result, bool) {
		if tried[u] {
			return Result{}, false
		}
		tried[u] = true

		payload, format, err := c.fetchImage(ctx, u)
		if err != nil {
			record(u, err)
			return Result{}, false
		}
		return Result{Payload: payload, Format: format, Outcome: model.OutcomeOK, Source: u}, true
	}

	if res, ok := try(base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()); ok {
		return res
	}

	links, err := c.discover(ctx, base)
	if err != nil {
		record(base.String(), err)
	}
	for _, u := range links {
		if res, ok := try(u); ok {
			return res
		}
	}

	if c.fallback != "" {
		if res, ok := try(fmt.Sprintf(c.fallback, url.QueryEscape(base.Hostname()))); ok {
			return res
		}
	}

	if ctx.Err() != nil {
		transient = true
		lastErr = fmt.Errorf("%w: %w", model.ErrNetwork, ctx.Err())
	}
	if transient {
		return Result{Outcome: model.OutcomeNetworkError, Err: lastErr}
	}
	if lastErr == nil {
		lastErr = errUnusable
	}
	return Result{Outcome: model.OutcomeNotFound, Err: lastErr}
}

// get performs one GET with its own timeout. The caller must call the
// returned cancel func after consuming the body.
func (c *Client) get(ctx context.Context, rawURL, accept string) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %w", errUnusable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %s", model.ErrNetwork, normalizeError(err.Error()))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, cancel, nil
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: %s", model.ErrNetwork, http.StatusText(resp.StatusCode))
	default:
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: %s", errUnusable, http.StatusText(resp.StatusCode))
	}
}

// fetchImage downloads one candidate and validates it as an image.
func (c *Client) fetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, cancel, err := c.get(ctx, rawURL, "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5")
	if err != nil {
		return nil, "", err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.ContentLength > c.maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit", errUnusable, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", model.ErrNetwork, normalizeError(err.Error()))
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", fmt.Errorf("%w: payload exceeds %d bytes", errUnusable, c.maxBytes)
	}

	format, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// discover fetches the home page and returns declared icon URLs, best first.
func (c *Client) discover(ctx context.Context, base *url.URL) ([]string, error) {
	resp, cancel, err := c.get(ctx, base.ResolveReference(&url.URL{Path: "/"}).String(),
		"text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	// redirects may land on another host; links resolve against the final URL
	pageURL := resp.Request.URL
	links, err := parseIconLinks(io.LimitReader(resp.Body, maxPageBytes), pageURL)
	if err != nil {
		return nil, err
	}
	if len(links) > maxCandidates {
		links = links[:maxCandidates]
	}
	return links, nil
}

// normalizeError simplifies verbose transport errors into readable categories.
func normalizeError(errStr string) string {
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "context deadline exceeded"),
		strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "connection refused"):
		return "connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "network is unreachable"):
		return "network unreachable"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return errStr
	}
}
