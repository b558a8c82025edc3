package trendlyne

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
)

// Name identifies Trendlyne in source attempts and cache entries
const Name = "trendlyne"

// preferredDumps orders statement kinds when two dumps cover the same quarters
var preferredDumps = []string{"consolidated", "standalone"}

// Quarter row keys, first present wins
var (
	revenueKeys = []string{"TOTAL_SR_Q", "SR_Q"}
	patKeys     = []string{"NP_Q"}
	ebitdaKeys  = []string{"EBITDA_Q", "OP_Q"}
	epsKeys     = []string{"EPS_Q", "EPSQ_Q"}
)

// Adapter serves quarterly fundamentals from Trendlyne
type Adapter struct {
	client *Client
}

// NewAdapter creates a Trendlyne source adapter
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets Trendlyne can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	return fs == domain.FieldSetQuarterly
}

// Fetch retrieves quarterly fundamentals for an entity
func (a *Adapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	if fs != domain.FieldSetQuarterly {
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}

	payload, err := a.quarterly(ctx, entity)
	if err != nil {
		return nil, unavailable(err)
	}
	return payload, nil
}

func (a *Adapter) quarterly(ctx context.Context, entity domain.Entity) (*domain.RawPayload, error) {
	items, err := a.client.Search(ctx, entity.Symbol)
	if err != nil {
		return nil, err
	}
	item, ok := match(items, entity)
	if !ok {
		return nil, fmt.Errorf("%s: %w", entity.ID(), ErrNotListed)
	}

	pageURL := a.client.resolve(item.NextURL)
	fundURL, err := a.client.FundamentalsURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := a.client.Fundamentals(ctx, fundURL, pageURL)
	if err != nil {
		return nil, err
	}

	dump := chooseDump(doc.Body.QuarterlyDataDump, doc.Body.QuarterlyOrder)
	if dump == nil {
		return nil, sources.NewUnavailable(Name, domain.ReasonNotFound, fmt.Errorf("no quarterly data for %s", entity.ID()))
	}

	// quarterlyOrder is newest first; payload periods go oldest first
	periods := make([]domain.RawPeriod, 0, len(doc.Body.QuarterlyOrder))
	for i := len(doc.Body.QuarterlyOrder) - 1; i >= 0; i-- {
		label := doc.Body.QuarterlyOrder[i]
		row, ok := dump[label]
		if !ok {
			continue
		}
		periods = append(periods, domain.RawPeriod{
			Label: label,
			Values: map[string]string{
				domain.ValueRevenue: firstValue(row, revenueKeys),
				domain.ValuePAT:     firstValue(row, patKeys),
				domain.ValueEBITDA:  firstValue(row, ebitdaKeys),
				domain.ValueEPS:     firstValue(row, epsKeys),
			},
		})
	}

	return &domain.RawPayload{
		Source:     Name,
		Unit:       "crore",
		Currency:   "INR",
		PeriodKind: domain.PeriodQuarter,
		Periods:    periods,
	}, nil
}

// match picks the search hit for the entity's exchange code, falling back to
// a case-insensitive symbol match on the value
func match(items []SearchItem, entity domain.Entity) (SearchItem, bool) {
	for _, item := range items {
		code := item.NSECode
		if strings.EqualFold(entity.Exchange, "BSE") {
			code = item.BSECode
		}
		if item.NextURL != "" && strings.EqualFold(code, entity.Symbol) {
			return item, true
		}
	}
	for _, item := range items {
		if item.NextURL != "" && strings.EqualFold(item.Value, entity.Symbol) {
			return item, true
		}
	}
	return SearchItem{}, false
}

type quarterRow map[string]json.RawMessage

// chooseDump returns the statement dump covering the most listed quarters.
// Ties go to consolidated over standalone, then to name order.
func chooseDump(dumps map[string]json.RawMessage, order []string) map[string]quarterRow {
	names := make([]string, 0, len(dumps))
	for name := range dumps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := preference(names[i]), preference(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})

	var (
		best      map[string]quarterRow
		bestScore int
	)
	for _, name := range names {
		var candidate map[string]quarterRow
		if err := json.Unmarshal(dumps[name], &candidate); err != nil {
			continue
		}
		score := 0
		for _, q := range order {
			if _, ok := candidate[q]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

func preference(name string) int {
	for i, p := range preferredDumps {
		if strings.EqualFold(name, p) {
			return i
		}
	}
	return len(preferredDumps)
}

// firstValue renders the first present key as text; absent values become ""
func firstValue(row quarterRow, keys []string) string {
	for _, k := range keys {
		raw, ok := row[k]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if strings.TrimSpace(s) == "" {
				continue
			}
			return s
		}
		return string(raw)
	}
	return ""
}

func unavailable(err error) error {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return sources.NewUnavailable(Name, sources.ReasonForStatus(statusErr.StatusCode), err)
	case errors.Is(err, ErrNotListed):
		return sources.NewUnavailable(Name, domain.ReasonNotFound, err)
	case errors.Is(err, ErrMalformedResponse):
		return sources.NewUnavailable(Name, domain.ReasonMalformedResponse, err)
	}
	return sources.Classify(Name, err)
}
