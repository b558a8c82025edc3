package nse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
)

// Name identifies NSE in source attempts and cache entries
const Name = "nse"

// Exchange is the listing exchange code used for NSE entities
const Exchange = "NSE"

var ist = time.FixedZone("IST", 5*3600+1800)

// Adapter serves the listing universe and current quotes from NSE
type Adapter struct {
	client *Client
	now    func() time.Time
}

// NewAdapter creates an NSE source adapter
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client, now: time.Now}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets NSE can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	return fs == domain.FieldSetUniverse || fs == domain.FieldSetPrice
}

// Fetch retrieves one field set for an entity
func (a *Adapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	var (
		payload *domain.RawPayload
		err     error
	)
	switch fs {
	case domain.FieldSetUniverse:
		payload, err = a.universe(ctx)
	case domain.FieldSetPrice:
		if !strings.EqualFold(entity.Exchange, Exchange) {
			return nil, sources.NewUnavailable(Name, domain.ReasonNotFound, fmt.Errorf("%s is not listed on NSE", entity.ID()))
		}
		payload, err = a.quote(ctx, entity.Symbol)
	default:
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return payload, nil
}

func (a *Adapter) universe(ctx context.Context) (*domain.RawPayload, error) {
	resp, err := a.client.GetPreOpen(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, errors.New("pre-open listing is empty"))
	}

	listings := make([]domain.RawListing, 0, len(resp.Data))
	for _, item := range resp.Data {
		symbol := strings.TrimSpace(item.Metadata.Symbol)
		if symbol == "" {
			continue
		}
		listings = append(listings, domain.RawListing{
			Exchange:       Exchange,
			Symbol:         symbol,
			Name:           symbol,
			MarketCapRupee: item.Metadata.MarketCap,
		})
	}

	return &domain.RawPayload{Source: Name, Listings: listings}, nil
}

func (a *Adapter) quote(ctx context.Context, symbol string) (*domain.RawPayload, error) {
	resp, err := a.client.GetQuote(ctx, strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}

	price := resp.PriceInfo.LastPrice
	if price <= 0 {
		price = resp.PriceInfo.Close
	}
	if price <= 0 || resp.SecurityInfo.IssuedSize <= 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, fmt.Errorf("quote for %s lacks price or issued size", symbol))
	}

	asOf := a.now().UTC()
	if t, err := time.ParseInLocation("02-Jan-2006 15:04:05", resp.Metadata.LastUpdateTime, ist); err == nil {
		asOf = t.UTC()
	}

	return &domain.RawPayload{
		Source: Name,
		Quote: &domain.RawQuote{
			Price:  price,
			Shares: resp.SecurityInfo.IssuedSize,
			AsOf:   asOf,
		},
	}, nil
}

func unavailable(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return sources.NewUnavailable(Name, sources.ReasonForStatus(statusErr.StatusCode), err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return sources.NewUnavailable(Name, domain.ReasonMalformedResponse, err)
	}
	return sources.Classify(Name, err)
}
