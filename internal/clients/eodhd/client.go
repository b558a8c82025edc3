// Package eodhd provides a client for the EOD Historical Data API and a
// source adapter serving quarterly fundamentals, splits and quotes from it.
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second
)

// ErrMalformedResponse wraps bodies that could not be decoded.
var ErrMalformedResponse = errors.New("malformed EODHD response")

// APIError represents a non-200 response from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Client is an EODHD API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: log.With().Str("component", "eodhd").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().Str("endpoint", path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w: %w", ErrMalformedResponse, err)
	}

	return nil
}

// GetFundamentals retrieves the fundamentals document for a ticker ("INFY.NSE").
func (c *Client) GetFundamentals(ctx context.Context, ticker string) (*FundamentalsResponse, error) {
	var result FundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+ticker, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSplits retrieves the split history for a ticker.
func (c *Client) GetSplits(ctx context.Context, ticker string) ([]Split, error) {
	var result []Split
	if err := c.get(ctx, "/splits/"+ticker, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRealTimeQuote retrieves the latest (delayed) quote for a ticker.
func (c *Client) GetRealTimeQuote(ctx context.Context, ticker string) (*RealTimeQuote, error) {
	var result RealTimeQuote
	if err := c.get(ctx, "/real-time/"+ticker, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
