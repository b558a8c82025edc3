// Package trendlyne scrapes quarterly results from Trendlyne. A company is
// located through the autocomplete API, its equity page names the results
// endpoint in a data-tablesurl attribute, and that endpoint returns the
// quarterly dump as JSON.
package trendlyne

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the Trendlyne website root
	DefaultBaseURL = "https://trendlyne.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

// fundamentalsURLRe finds the results endpoint when the attribute is absent
var fundamentalsURLRe = regexp.MustCompile(`https?://[^\s"'<>]*get-fundamental_results[^\s"'<>]*`)

var (
	// ErrMalformedResponse wraps bodies that could not be decoded
	ErrMalformedResponse = errors.New("malformed Trendlyne response")
	// ErrNotListed is returned when the search finds no matching company
	ErrNotListed = errors.New("company not found on Trendlyne")
)

// StatusError is a non-200 response from Trendlyne
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Trendlyne request %s failed with status %d", e.URL, e.StatusCode)
}

// Client is a Trendlyne scraping client
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a Trendlyne client with its own cookie jar
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		log: log.With().Str("component", "trendlyne").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) get(ctx context.Context, rawURL, referer string, xhr bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if xhr {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	return resp, nil
}

// resolve turns a site-relative path into an absolute URL
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Search queries the autocomplete API
func (c *Client) Search(ctx context.Context, term string) ([]SearchItem, error) {
	params := url.Values{"term": {term}, "all-results": {"true"}}
	resp, err := c.get(ctx, c.baseURL+"/member/api/ac_snames/all/?"+params.Encode(), c.baseURL+"/", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var items []SearchItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w: %w", ErrMalformedResponse, err)
	}
	return items, nil
}

// FundamentalsURL extracts the results endpoint from an equity page
func (c *Client) FundamentalsURL(ctx context.Context, pagePath string) (string, error) {
	resp, err := c.get(ctx, c.resolve(pagePath), c.baseURL+"/", false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read equity page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if href, ok := doc.Find("[data-tablesurl]").First().Attr("data-tablesurl"); ok && strings.TrimSpace(href) != "" {
			return c.resolve(strings.TrimSpace(href)), nil
		}
	}

	if m := fundamentalsURLRe.Find(body); m != nil {
		u := string(m)
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		return u, nil
	}

	return "", fmt.Errorf("results endpoint not found on %s: %w", pagePath, ErrMalformedResponse)
}

// Fundamentals fetches and decodes the quarterly results document
func (c *Client) Fundamentals(ctx context.Context, fundamentalsURL, referer string) (*FundamentalsResponse, error) {
	resp, err := c.get(ctx, fundamentalsURL, referer, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result FundamentalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode fundamentals: %w: %w", ErrMalformedResponse, err)
	}
	return &result, nil
}
