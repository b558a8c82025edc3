// Package analysis summarizes credit-rating documents with the Anthropic
// Messages API and serves the summaries as the credit-rating field set.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens bounds the summary response
	DefaultMaxTokens = 1024

	// maxDocumentChars bounds the document text sent for analysis
	maxDocumentChars = 60000
)

const systemPrompt = `You analyse Indian credit rating rationale documents.
Reply with a single JSON object and nothing else, using these keys:
"agency": the rating agency,
"rating": the assigned long-term rating,
"outlook": the rating outlook,
"projected_growth": the revenue growth the agency expects, as stated (for example "12-15%"), or "" if none is stated,
"time_period": the period the growth projection covers, or "",
"evidence": a short verbatim quote supporting projected_growth, or "".`

// ErrUnusableSummary is returned when the model reply carries no summary
var ErrUnusableSummary = errors.New("analysis reply has no usable summary")

// Config configures the Claude summarizer
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string
}

// ClaudeSummarizer extracts rating summaries with Claude
type ClaudeSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	log       zerolog.Logger
}

// NewClaudeSummarizer creates a summarizer. Retries are left to the cooldown
// in the adapter.
func NewClaudeSummarizer(cfg Config, log zerolog.Logger) *ClaudeSummarizer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &ClaudeSummarizer{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		log:       log.With().Str("component", "rating_summarizer").Logger(),
	}
}

// Summarize asks the model for a structured summary of a rating document
func (s *ClaudeSummarizer) Summarize(ctx context.Context, doc *domain.RawDocument) (*domain.RatingSummary, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil, fmt.Errorf("document %s has no text: %w", doc.URL, ErrUnusableSummary)
	}
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Rating document:\n\n" + text)),
		},
	}

	start := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	summary, err := parseSummary(reply.String())
	if err != nil {
		return nil, err
	}
	summary.DocumentURL = doc.URL

	s.log.Debug().
		Str("document", doc.URL).
		Str("agency", summary.Agency).
		Str("projected_growth", summary.ProjectedGrowth).
		Dur("duration", time.Since(start)).
		Msg("Summarized rating document")

	return summary, nil
}

// parseSummary decodes the JSON object embedded in a model reply
func parseSummary(reply string) (*domain.RatingSummary, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, ErrUnusableSummary
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal([]byte(reply[start:end+1]), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w: %w", ErrUnusableSummary, err)
	}
	if summary.Rating == "" && summary.ProjectedGrowth == "" {
		return nil, ErrUnusableSummary
	}
	return &summary, nil
}
