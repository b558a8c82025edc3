// Package screener scrapes company pages on screener.in for governance
// disclosures and credit-rating documents.
package screener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the screener.in root
	DefaultBaseURL = "https://www.screener.in"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// maxDocumentBytes bounds rating document downloads
	maxDocumentBytes = 20 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

var (
	// ErrMalformedResponse marks pages that lack the expected structure
	ErrMalformedResponse = errors.New("malformed screener.in page")
	// ErrNoRatingDocument is returned when a company lists no credit ratings
	ErrNoRatingDocument = errors.New("no credit rating document listed")
)

// StatusError is a non-200 response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed with status %d", e.URL, e.StatusCode)
}

// Client is a screener.in scraping client
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

// NewClient creates a screener.in client
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: log.With().Str("component", "screener").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

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

// CompanyPage loads the consolidated company page, falling back to the
// standalone page for companies without consolidated accounts
func (c *Client) CompanyPage(ctx context.Context, symbol string) (*goquery.Document, error) {
	symbol = url.PathEscape(strings.ToUpper(symbol))

	var lastErr error
	for _, path := range []string{"/company/" + symbol + "/consolidated/", "/company/" + symbol + "/"} {
		resp, err := c.get(ctx, c.baseURL+path)
		if err != nil {
			lastErr = err
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				continue
			}
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse company page: %w: %w", ErrMalformedResponse, err)
		}
		return doc, nil
	}
	return nil, lastErr
}

// RatingLink returns the absolute URL of the latest credit rating document
// listed on a company page
func (c *Client) RatingLink(doc *goquery.Document) (string, error) {
	section := doc.Find("#documents .documents.credit-ratings ul").First()
	if section.Length() == 0 {
		return "", ErrNoRatingDocument
	}

	href, ok := section.Find("li:first-child > a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", ErrNoRatingDocument
	}
	return c.absolute(c.baseURL, strings.TrimSpace(href))
}

func (c *Client) absolute(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Document downloads a rating document and extracts its text. HTML pages
// that embed the rationale PDF in a viewer frame have the PDF text appended.
func (c *Client) Document(ctx context.Context, rawURL string) (*domain.RawDocument, error) {
	return c.document(ctx, rawURL, true)
}

func (c *Client) document(ctx context.Context, rawURL string, followFrames bool) (*domain.RawDocument, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/pdf") || bytes.HasPrefix(body, []byte("%PDF")) {
		text, err := pdfText(body)
		if err != nil {
			return nil, fmt.Errorf("failed to extract pdf text: %w: %w", ErrMalformedResponse, err)
		}
		return &domain.RawDocument{URL: rawURL, ContentType: "application/pdf", Text: text}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w: %w", ErrMalformedResponse, err)
	}

	result := &domain.RawDocument{
		URL:         rawURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		ContentType: "text/html",
		Text:        pageText(doc),
	}

	if !followFrames {
		return result, nil
	}

	if src, ok := doc.Find("div.pdf_holder iframe").First().Attr("src"); ok && src != "" {
		pdfURL, err := c.absolute(rawURL, embeddedPDFPath(src))
		if err == nil {
			if embedded, err := c.document(ctx, pdfURL, false); err == nil {
				result.Text = strings.TrimSpace(result.Text + "\n\n" + embedded.Text)
			} else {
				c.log.Debug().Err(err).Str("url", pdfURL).Msg("Embedded rating PDF unavailable")
			}
		}
	}

	return result, nil
}

// embeddedPDFPath rewrites viewer frame URLs to the direct download endpoint
func embeddedPDFPath(src string) string {
	const viewer = "/Rating/ShowRationalReportFilePdf/"
	if i := strings.Index(src, viewer); i >= 0 {
		id := strings.Trim(src[i+len(viewer):], "/")
		return "/Rating/GetRationalReportFilePdf?Id=" + url.QueryEscape(id)
	}
	return src
}

// pageText returns the visible text of a page with whitespace collapsed
func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}
