package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
)

// Name identifies EODHD in source attempts and cache entries
const Name = "eodhd"

// Income statement row keys used for fundamentals
const (
	keyRevenue   = "totalRevenue"
	keyEBITDA    = "ebitda"
	keyNetIncome = "netIncome"
)

// exchangeSuffix maps listing exchanges to EODHD ticker suffixes
var exchangeSuffix = map[string]string{
	"NSE": "NSE",
	"BSE": "BSE",
}

// Adapter serves quarterly fundamentals, corporate actions and prices from EODHD.
type Adapter struct {
	client *Client
}

// NewAdapter creates an EODHD source adapter
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets EODHD can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	switch fs {
	case domain.FieldSetQuarterly, domain.FieldSetActions, domain.FieldSetPrice:
		return true
	}
	return false
}

// Fetch retrieves one field set for an entity
func (a *Adapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	ticker := Ticker(entity)

	var (
		payload *domain.RawPayload
		err     error
	)
	switch fs {
	case domain.FieldSetQuarterly:
		payload, err = a.fundamentals(ctx, ticker)
	case domain.FieldSetActions:
		payload, err = a.splits(ctx, ticker)
	case domain.FieldSetPrice:
		payload, err = a.quote(ctx, ticker)
	default:
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return payload, nil
}

// Ticker renders an entity as an EODHD ticker ("INFY.NSE")
func Ticker(entity domain.Entity) string {
	exchange := strings.ToUpper(entity.Exchange)
	if suffix, ok := exchangeSuffix[exchange]; ok {
		exchange = suffix
	}
	return strings.ToUpper(entity.Symbol) + "." + exchange
}

func (a *Adapter) fundamentals(ctx context.Context, ticker string) (*domain.RawPayload, error) {
	resp, err := a.client.GetFundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if resp.Financials == nil || resp.Financials.IncomeStatement == nil || len(resp.Financials.IncomeStatement.Quarterly) == 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonNotFound, fmt.Errorf("no quarterly income statement for %s", ticker))
	}

	eps := make(map[string]string)
	if resp.Earnings != nil {
		for date, entry := range resp.Earnings.History {
			if entry.EPSActual != nil {
				eps[date] = strconv.FormatFloat(*entry.EPSActual, 'f', -1, 64)
			}
		}
	}

	dates := make([]string, 0, len(resp.Financials.IncomeStatement.Quarterly))
	for date := range resp.Financials.IncomeStatement.Quarterly {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	periods := make([]domain.RawPeriod, 0, len(dates))
	for _, date := range dates {
		row := resp.Financials.IncomeStatement.Quarterly[date]
		values := map[string]string{
			domain.ValueRevenue: rawText(row[keyRevenue]),
			domain.ValueEBITDA:  rawText(row[keyEBITDA]),
			domain.ValuePAT:     rawText(row[keyNetIncome]),
		}
		if v, ok := eps[date]; ok {
			values[domain.ValueEPS] = v
		}
		periods = append(periods, domain.RawPeriod{Label: date, EndDate: date, Values: values})
	}

	currency := ""
	if resp.General != nil {
		currency = resp.General.CurrencyCode
	}

	return &domain.RawPayload{
		Source:     Name,
		Unit:       "rupee",
		Currency:   currency,
		PeriodKind: domain.PeriodQuarter,
		Periods:    periods,
	}, nil
}

func (a *Adapter) splits(ctx context.Context, ticker string) (*domain.RawPayload, error) {
	splits, err := a.client.GetSplits(ctx, ticker)
	if err != nil {
		return nil, err
	}

	actions := make([]domain.RawAction, 0, len(splits))
	for _, s := range splits {
		actions = append(actions, domain.RawAction{
			Kind:  string(domain.ActionSplit),
			Date:  s.Date,
			Ratio: s.Split,
		})
	}
	return &domain.RawPayload{Source: Name, Actions: actions}, nil
}

// quote combines the real-time price with the shares outstanding from fundamentals
func (a *Adapter) quote(ctx context.Context, ticker string) (*domain.RawPayload, error) {
	rt, err := a.client.GetRealTimeQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	price, err := rawFloat(rt.Close)
	if err != nil || price <= 0 {
		price, err = rawFloat(rt.PreviousClose)
	}
	if err != nil || price <= 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, fmt.Errorf("no price for %s", ticker))
	}

	resp, err := a.client.GetFundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if resp.SharesStats == nil || resp.SharesStats.SharesOutstanding <= 0 {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, fmt.Errorf("no shares outstanding for %s", ticker))
	}

	asOf := time.Now().UTC()
	if ts, err := rawFloat(rt.Timestamp); err == nil && ts > 0 {
		asOf = time.Unix(int64(ts), 0).UTC()
	}

	return &domain.RawPayload{
		Source: Name,
		Quote: &domain.RawQuote{
			Price:  price,
			Shares: resp.SharesStats.SharesOutstanding,
			AsOf:   asOf,
		},
	}, nil
}

// unavailable classifies client errors for the resolver
func unavailable(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return sources.NewUnavailable(Name, sources.ReasonForStatus(apiErr.StatusCode), err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return sources.NewUnavailable(Name, domain.ReasonMalformedResponse, err)
	}
	return sources.Classify(Name, err)
}

// rawText renders a JSON string or number as text; null becomes ""
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func rawFloat(raw json.RawMessage) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(rawText(raw)), 64)
}
