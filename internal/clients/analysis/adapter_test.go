package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocs struct {
	doc *domain.RawDocument
	err error
}

func (f *fakeDocs) RatingDocument(ctx context.Context, entity domain.Entity) (*domain.RawDocument, error) {
	return f.doc, f.err
}

type fakeSummarizer struct {
	calls   atomic.Int32
	summary *domain.RatingSummary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, doc *domain.RawDocument) (*domain.RatingSummary, error) {
	f.calls.Add(1)
	return f.summary, f.err
}

var entity = domain.Entity{Exchange: "NSE", Symbol: "ABC"}

func TestAdapter_Success(t *testing.T) {
	doc := &domain.RawDocument{URL: "https://ratings.example/abc", Text: "rationale"}
	summarizer := &fakeSummarizer{summary: &domain.RatingSummary{Agency: "CARE", Rating: "CARE A", ProjectedGrowth: "12-15%"}}
	adapter := NewAdapter(&fakeDocs{doc: doc}, summarizer, time.Hour, zerolog.Nop())

	payload, err := adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	require.NoError(t, err)
	assert.Equal(t, "CARE A", payload.Rating.Rating)
	assert.Equal(t, doc, payload.Document)
}

func TestAdapter_CooldownAfterFailure(t *testing.T) {
	doc := &domain.RawDocument{URL: "https://ratings.example/abc", Text: "rationale"}
	summarizer := &fakeSummarizer{err: ErrUnusableSummary}
	adapter := NewAdapter(&fakeDocs{doc: doc}, summarizer, time.Hour, zerolog.Nop())

	clock := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return clock }

	_, err := adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	var unavailable *sources.Unavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonMalformedResponse, unavailable.Reason)

	// within the cooldown the document is not resubmitted
	clock = clock.Add(30 * time.Minute)
	_, err = adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonCooldown, unavailable.Reason)
	assert.Equal(t, int32(1), summarizer.calls.Load())

	// once it expires the document is tried again
	clock = clock.Add(time.Hour)
	summarizer.err = nil
	summarizer.summary = &domain.RatingSummary{Rating: "CARE A"}
	_, err = adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	require.NoError(t, err)
	assert.Equal(t, int32(2), summarizer.calls.Load())
}

func TestAdapter_DocumentErrorIsAttributedToAnalysis(t *testing.T) {
	docErr := sources.NewUnavailable("screener", domain.ReasonNotFound, errors.New("no ratings"))
	summarizer := &fakeSummarizer{}
	adapter := NewAdapter(&fakeDocs{err: docErr}, summarizer, time.Hour, zerolog.Nop())

	_, err := adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	assert.ErrorIs(t, err, docErr)
	assert.Equal(t, int32(0), summarizer.calls.Load())

	var unavailable *sources.Unavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, Name, unavailable.Source)
	assert.Equal(t, domain.ReasonNotFound, unavailable.Reason)
}

func TestAdapter_PlainDocumentErrorIsNetworkError(t *testing.T) {
	adapter := NewAdapter(&fakeDocs{err: errors.New("connection reset")}, &fakeSummarizer{}, time.Hour, zerolog.Nop())

	_, err := adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)
	var unavailable *sources.Unavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, Name, unavailable.Source)
	assert.Equal(t, domain.ReasonNetworkError, unavailable.Reason)
}

func TestParseSummary(t *testing.T) {
	summary, err := parseSummary("Here you go:\n```json\n{\"agency\": \"ICRA\", \"rating\": \"[ICRA]A+\", \"outlook\": \"Stable\", \"projected_growth\": \"10%\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ICRA", summary.Agency)
	assert.Equal(t, "10%", summary.ProjectedGrowth)

	_, err = parseSummary("I could not find a rating.")
	assert.ErrorIs(t, err, ErrUnusableSummary)

	_, err = parseSummary(`{"agency": "ICRA"}`)
	assert.ErrorIs(t, err, ErrUnusableSummary)
}

func TestClaudeSummarizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01", "type": "message", "role": "assistant", "model": "` + DefaultModel + `",
			"content": [{"type": "text", "text": "{\"agency\": \"CRISIL\", \"rating\": \"CRISIL AA-\", \"outlook\": \"Positive\", \"projected_growth\": \"18-20%\", \"time_period\": \"FY27\", \"evidence\": \"revenue growth of 18-20%\"}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 20}
		}`))
	}))
	defer server.Close()

	summarizer := NewClaudeSummarizer(Config{APIKey: "test-key", BaseURL: server.URL}, zerolog.Nop())
	summary, err := summarizer.Summarize(context.Background(), &domain.RawDocument{URL: "https://ratings.example/abc", Text: "rationale text"})
	require.NoError(t, err)

	assert.Equal(t, "CRISIL", summary.Agency)
	assert.Equal(t, "18-20%", summary.ProjectedGrowth)
	assert.Equal(t, "FY27", summary.TimePeriod)
	assert.Equal(t, "https://ratings.example/abc", summary.DocumentURL)
}

func TestClaudeSummarizer_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer server.Close()

	summarizer := NewClaudeSummarizer(Config{APIKey: "test-key", BaseURL: server.URL}, zerolog.Nop())
	doc := &domain.RawDocument{URL: "https://ratings.example/abc", Text: "rationale"}
	adapter := NewAdapter(&fakeDocs{doc: doc}, summarizer, time.Hour, zerolog.Nop())

	_, err := adapter.Fetch(context.Background(), entity, domain.FieldSetCreditRating)

	var unavailable *sources.Unavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonRateLimited, unavailable.Reason)
}

func TestSummarize_EmptyDocument(t *testing.T) {
	summarizer := NewClaudeSummarizer(Config{APIKey: "unused"}, zerolog.Nop())
	_, err := summarizer.Summarize(context.Background(), &domain.RawDocument{URL: "x", Text: "  "})
	assert.ErrorIs(t, err, ErrUnusableSummary)
}
