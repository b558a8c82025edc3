// Package nse provides a client for the National Stock Exchange of India
// website APIs. The API only answers sessions that first loaded the public
// pages, so the client keeps a cookie jar and warms it before the first call.
package nse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the NSE website root
	DefaultBaseURL = "https://www.nseindia.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

// warmupPaths are loaded in order to obtain the session cookies
var warmupPaths = []string{"/", "/market-data/live-equity-market"}

// ErrMalformedResponse wraps bodies that could not be decoded
var ErrMalformedResponse = errors.New("malformed NSE response")

// StatusError is a non-200 response from NSE
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("NSE request %s failed with status %d", e.Path, e.StatusCode)
}

// Client is an NSE website API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	warmupWait time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	warmed bool
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithWarmupWait sets the pause between warm-up page loads
func WithWarmupWait(d time.Duration) ClientOption {
	return func(c *Client) {
		c.warmupWait = d
	}
}

// NewClient creates an NSE client with its own cookie jar
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		warmupWait: time.Second,
		log:        log.With().Str("component", "nse").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// warm loads the public pages once per session so the API accepts requests
func (c *Client) warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warmed {
		return nil
	}

	for i, path := range warmupPaths {
		if i > 0 && c.warmupWait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.warmupWait):
			}
		}

		resp, err := c.do(ctx, path, nil, "text/html,application/xhtml+xml")
		if err != nil {
			return fmt.Errorf("failed to warm NSE session: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to warm NSE session: %w", &StatusError{StatusCode: resp.StatusCode, Path: path})
		}
	}

	c.warmed = true
	c.log.Debug().Msg("NSE session warmed")
	return nil
}

// reset forces a new warm-up on the next call
func (c *Client) reset() {
	c.mu.Lock()
	c.warmed = false
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, path string, params url.Values, accept string) (*http.Response, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}

// getJSON warms the session and decodes an API response. A 401 or 403 drops
// the session so the next call warms again.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.warm(ctx); err != nil {
		return err
	}

	resp, err := c.do(ctx, path, params, "application/json, text/plain, */*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.reset()
		}
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s: %w: %w", path, ErrMalformedResponse, err)
	}
	return nil
}

// GetPreOpen returns the pre-open market listing for all securities
func (c *Client) GetPreOpen(ctx context.Context) (*PreOpenResponse, error) {
	var result PreOpenResponse
	if err := c.getJSON(ctx, "/api/market-data-pre-open", url.Values{"key": {"ALL"}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetQuote returns the equity quote for a symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*QuoteResponse, error) {
	var result QuoteResponse
	if err := c.getJSON(ctx, "/api/quote-equity", url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
