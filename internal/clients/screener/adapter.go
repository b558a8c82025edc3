package screener

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
)

// Name identifies screener.in in source attempts and cache entries
const Name = "screener"

// Adapter serves governance disclosures scraped from company pages. It also
// locates credit-rating documents for the rating summarizer.
type Adapter struct {
	client *Client
}

// NewAdapter creates a screener.in source adapter
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets screener.in can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	return fs == domain.FieldSetGovernance
}

// Fetch retrieves governance disclosures for an entity
func (a *Adapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	if fs != domain.FieldSetGovernance {
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}

	doc, err := a.client.CompanyPage(ctx, entity.Symbol)
	if err != nil {
		return nil, unavailable(err)
	}

	if doc.Find("#top-ratios").Length() == 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, fmt.Errorf("company page for %s has no ratios section", entity.ID()))
	}

	return &domain.RawPayload{
		Source:     Name,
		Unit:       "crore",
		Currency:   "INR",
		Governance: governance(doc),
	}, nil
}

// RatingDocument finds and downloads the latest credit rating document
func (a *Adapter) RatingDocument(ctx context.Context, entity domain.Entity) (*domain.RawDocument, error) {
	doc, err := a.client.CompanyPage(ctx, entity.Symbol)
	if err != nil {
		return nil, unavailable(err)
	}

	link, err := a.client.RatingLink(doc)
	if err != nil {
		return nil, unavailable(err)
	}

	document, err := a.client.Document(ctx, link)
	if err != nil {
		return nil, unavailable(err)
	}
	return document, nil
}

func unavailable(err error) error {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return sources.NewUnavailable(Name, sources.ReasonForStatus(statusErr.StatusCode), err)
	case errors.Is(err, ErrNoRatingDocument):
		return sources.NewUnavailable(Name, domain.ReasonNotFound, err)
	case errors.Is(err, ErrMalformedResponse):
		return sources.NewUnavailable(Name, domain.ReasonMalformedResponse, err)
	}
	return sources.Classify(Name, err)
}
