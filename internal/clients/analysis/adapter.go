package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
	"github.com/rs/zerolog"
)

// Name identifies the rating analysis source
const Name = "analysis"

// DefaultCooldown is how long a document is left alone after a failed analysis
const DefaultCooldown = 6 * time.Hour

// DocumentSource locates the latest credit rating document for an entity
type DocumentSource interface {
	RatingDocument(ctx context.Context, entity domain.Entity) (*domain.RawDocument, error)
}

// Summarizer turns a rating document into a structured summary
type Summarizer interface {
	Summarize(ctx context.Context, doc *domain.RawDocument) (*domain.RatingSummary, error)
}

// Adapter serves the credit-rating field set. A document whose analysis
// failed is not resubmitted until its cooldown expires.
type Adapter struct {
	docs       DocumentSource
	summarizer Summarizer
	cooldown   time.Duration
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.Mutex
	failed map[string]time.Time
}

// NewAdapter creates the credit-rating adapter
func NewAdapter(docs DocumentSource, summarizer Summarizer, cooldown time.Duration, log zerolog.Logger) *Adapter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Adapter{
		docs:       docs,
		summarizer: summarizer,
		cooldown:   cooldown,
		now:        time.Now,
		log:        log.With().Str("component", "rating_analysis").Logger(),
		failed:     make(map[string]time.Time),
	}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets the adapter can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	return fs == domain.FieldSetCreditRating
}

// Fetch locates, downloads and summarizes the entity's latest rating document
func (a *Adapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	if fs != domain.FieldSetCreditRating {
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}

	doc, err := a.docs.RatingDocument(ctx, entity)
	if err != nil {
		// Attributed to analysis, keeping the locator's reason
		return nil, sources.NewUnavailable(Name, sources.Classify(Name, err).Reason,
			fmt.Errorf("locate rating document: %w", err))
	}

	if until, cooling := a.coolingDown(doc.URL); cooling {
		return nil, sources.NewUnavailable(Name, domain.ReasonCooldown,
			fmt.Errorf("analysis of %s failed recently, retry after %s", doc.URL, until.Format(time.RFC3339)))
	}

	summary, err := a.summarizer.Summarize(ctx, doc)
	if err != nil {
		if ctx.Err() == nil {
			a.markFailed(doc.URL)
		}
		a.log.Warn().Err(err).Str("entity", entity.ID()).Str("document", doc.URL).Msg("Rating analysis failed")
		return nil, classify(err)
	}

	return &domain.RawPayload{
		Source:   Name,
		Document: doc,
		Rating:   summary,
	}, nil
}

func (a *Adapter) coolingDown(url string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	failedAt, ok := a.failed[url]
	if !ok {
		return time.Time{}, false
	}
	until := failedAt.Add(a.cooldown)
	if !a.now().Before(until) {
		delete(a.failed, url)
		return time.Time{}, false
	}
	return until, true
}

func (a *Adapter) markFailed(url string) {
	a.mu.Lock()
	a.failed[url] = a.now()
	a.mu.Unlock()
}

func classify(err error) error {
	if errors.Is(err, ErrUnusableSummary) {
		return sources.NewUnavailable(Name, domain.ReasonMalformedResponse, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return sources.NewUnavailable(Name, sources.ReasonForStatus(apiErr.StatusCode), err)
	}
	return sources.Classify(Name, err)
}
