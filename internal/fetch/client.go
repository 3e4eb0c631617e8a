// Package fetch is the HTTP collaborator behind the source adapters: one
// client per upstream host, owning retries, backoff, and Retry-After
// handling. Adapters treat a returned error as persistent.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 5
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
)

// Client fetches payloads from one upstream host.
type Client struct {
	baseURL    string
	query      url.Values
	headers    map[string]string
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithQuery appends a query parameter to every request (API keys that
// travel in the query string).
func WithQuery(key, value string) Option {
	return func(c *Client) { c.query.Set(key, value) }
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// New creates a client for an upstream base URL.
func New(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		query:      url.Values{},
		headers:    make(map[string]string),
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		log:        log.With().Str("component", "fetch").Str("host", baseURL).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the payload at path, retrying transient failures with
// exponential backoff. A 429 or 503 with Retry-After waits the announced
// duration instead.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			if retryAfter, ok := retryAfterOf(lastErr); ok {
				wait = retryAfter
			}
			c.log.Warn().
				Err(lastErr).
				Str("path", path).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("Retrying fetch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		body, err := c.fetchOnce(ctx, path)
		if err == nil {
			return body, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: retries exhausted: %w", path, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, path string) ([]byte, error) {
	u, err := c.buildURL(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return io.ReadAll(resp.Body)
}

// buildURL joins the base URL with the request path, merging the client's
// standing query parameters with the path's own.
func (c *Client) buildURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("bad fetch path %q: %w", path, err)
	}
	if len(c.query) > 0 {
		q := u.Query()
		for k, vs := range c.query {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// transportError wraps a network-level failure; always retryable.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// statusError is a non-200 response.
type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// retryable reports whether the failure is worth another attempt: network
// errors, rate limits, and server-side errors are; client errors are not.
func retryable(err error) bool {
	switch e := err.(type) {
	case *transportError:
		return true
	case *statusError:
		return e.status == http.StatusTooManyRequests || e.status >= 500
	default:
		return false
	}
}

// retryAfterOf extracts an announced Retry-After duration from an error.
func retryAfterOf(err error) (time.Duration, bool) {
	if e, ok := err.(*statusError); ok && e.retryAfter > 0 {
		return e.retryAfter, true
	}
	return 0, false
}

// parseRetryAfter handles the delta-seconds form of the header.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
