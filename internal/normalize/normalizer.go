// Package normalize turns raw source payloads into canonical, calendar-aligned
// domain records: one monetary denomination (crore), one period grid, per-share
// values restated for splits and bonuses, and suspicious periods flagged.
// Normalization is a pure transform; cached payloads are never modified.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds normalizer tuning
type Config struct {
	// OutlierMultiple is the allowed deviation from the trailing median, in
	// multiples of the median's magnitude
	OutlierMultiple float64
	// OutlierWindow is the number of prior periods the median is taken over
	OutlierWindow int
	// FiscalYearStartMonth applies when a payload does not declare one
	FiscalYearStartMonth int
}

// DefaultConfig returns the default normalizer configuration
func DefaultConfig() Config {
	return Config{
		OutlierMultiple:      3,
		OutlierWindow:        4,
		FiscalYearStartMonth: 4,
	}
}

// Normalizer converts raw payloads to domain values
type Normalizer struct {
	cfg Config
	log zerolog.Logger
}

// New creates a normalizer
func New(cfg Config, log zerolog.Logger) *Normalizer {
	defaults := DefaultConfig()
	if cfg.OutlierMultiple <= 0 {
		cfg.OutlierMultiple = defaults.OutlierMultiple
	}
	if cfg.OutlierWindow <= 0 {
		cfg.OutlierWindow = defaults.OutlierWindow
	}
	if cfg.FiscalYearStartMonth < 1 || cfg.FiscalYearStartMonth > 12 {
		cfg.FiscalYearStartMonth = defaults.FiscalYearStartMonth
	}
	return &Normalizer{
		cfg: cfg,
		log: log.With().Str("component", "normalizer").Logger(),
	}
}

func newError(reason domain.NormalizationReason, payload *domain.RawPayload, format string, args ...interface{}) *domain.NormalizationError {
	return &domain.NormalizationError{
		Reason:   reason,
		FieldSet: payload.FieldSet,
		Source:   payload.Source,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// History normalizes a quarterly-fundamentals payload into a gap-filled
// series and restates it for the given corporate actions.
func (n *Normalizer) History(entity domain.Entity, payload *domain.RawPayload, actions []domain.CorporateAction) (*domain.FinancialHistory, error) {
	if payload == nil || len(payload.Periods) == 0 {
		return nil, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetQuarterly,
			Detail:   "payload has no periods",
		}
	}

	factor, ok := unitFactor(payload.Unit)
	if !ok {
		return nil, newError(domain.ReasonMalformedUnit, payload, "unknown unit %q", payload.Unit)
	}

	kind := payload.PeriodKind
	if kind == "" {
		kind = domain.PeriodQuarter
	}
	fyStart := payload.FiscalYearStartMonth
	if fyStart == 0 {
		fyStart = n.cfg.FiscalYearStartMonth
	}

	byPeriod := make(map[domain.Period]domain.FinancialRecord, len(payload.Periods))
	for _, raw := range payload.Periods {
		period, end, err := alignPeriod(raw, kind, fyStart)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "%v", err)
		}

		record, err := n.record(raw, factor)
		if err != nil {
			return nil, newError(domain.ReasonMalformedUnit, payload, "period %s: %v", period, err)
		}
		record.Period = period
		record.EndDate = end

		// Later entries for the same aligned period replace earlier ones
		byPeriod[period] = record
	}

	records := fillGaps(byPeriod)

	present := 0
	for _, r := range records {
		if !r.Missing {
			present++
		}
	}
	if present == 0 {
		return nil, newError(domain.ReasonMissingField, payload, "no period reports revenue or PAT")
	}

	applyActions(records, actions)
	markOutliers(records, n.cfg.OutlierWindow, n.cfg.OutlierMultiple)

	history := &domain.FinancialHistory{
		Entity:      entity,
		Kind:        kind,
		Currency:    payload.Currency,
		Source:      payload.Source,
		Records:     records,
		Adjustments: actions,
	}

	n.log.Debug().
		Str("entity", entity.ID()).
		Str("source", payload.Source).
		Int("periods", len(records)).
		Int("present", present).
		Msg("Normalized financial history")

	return history, nil
}

// record converts one raw period. Monetary values are scaled to crore; EPS,
// price and share counts are taken as reported.
func (n *Normalizer) record(raw domain.RawPeriod, factor decimal.Decimal) (domain.FinancialRecord, error) {
	var (
		record domain.FinancialRecord
		err    error
	)

	monetary := []struct {
		key string
		dst *null.Float
	}{
		{domain.ValueRevenue, &record.Revenue},
		{domain.ValueEBITDA, &record.EBITDA},
		{domain.ValuePAT, &record.PAT},
	}
	for _, m := range monetary {
		if *m.dst, err = scaled(raw.Values[m.key], factor); err != nil {
			return record, fmt.Errorf("%s: %w", m.key, err)
		}
	}

	perShare := []struct {
		key string
		dst *null.Float
	}{
		{domain.ValueEPS, &record.EPS},
		{domain.ValueShares, &record.Shares},
		{domain.ValuePrice, &record.Price},
	}
	for _, p := range perShare {
		if *p.dst, err = plain(raw.Values[p.key]); err != nil {
			return record, fmt.Errorf("%s: %w", p.key, err)
		}
	}

	record.Missing = !record.Revenue.Valid && !record.PAT.Valid
	return record, nil
}

// fillGaps orders records and inserts Missing placeholders for absent periods
func fillGaps(byPeriod map[domain.Period]domain.FinancialRecord) []domain.FinancialRecord {
	periods := make([]domain.Period, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	records := make([]domain.FinancialRecord, 0, len(periods))
	for p := periods[0]; !periods[len(periods)-1].Before(p); p = p.Next() {
		record, ok := byPeriod[p]
		if !ok {
			record = domain.FinancialRecord{Period: p, EndDate: p.EndDate(), Missing: true}
		}
		records = append(records, record)
	}
	return records
}

// Actions normalizes a corporate-actions payload
func (n *Normalizer) Actions(payload *domain.RawPayload) ([]domain.CorporateAction, error) {
	if payload == nil {
		return nil, nil
	}

	actions := make([]domain.CorporateAction, 0, len(payload.Actions))
	for _, raw := range payload.Actions {
		kind := domain.CorporateActionKind(strings.ToLower(strings.TrimSpace(raw.Kind)))
		date, err := ParseDate(raw.Date)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "%s action: %v", kind, err)
		}
		factor, err := actionFactor(kind, raw.Ratio)
		if err != nil {
			return nil, newError(domain.ReasonMalformedUnit, payload, "%s action on %s: %v", kind, raw.Date, err)
		}
		actions = append(actions, domain.CorporateAction{
			Kind:   kind,
			Date:   date,
			Factor: factor,
			Ratio:  raw.Ratio,
		})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Date.Before(actions[j].Date) })
	return actions, nil
}

// Quote normalizes a price payload
func (n *Normalizer) Quote(payload *domain.RawPayload) (domain.Quote, error) {
	if payload == nil || payload.Quote == nil {
		return domain.Quote{}, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetPrice,
			Detail:   "payload has no quote",
		}
	}
	if payload.Quote.Price <= 0 {
		return domain.Quote{}, newError(domain.ReasonMissingField, payload, "quote has no positive price")
	}
	if payload.Quote.Shares <= 0 {
		return domain.Quote{}, newError(domain.ReasonMissingField, payload, "quote has no shares outstanding")
	}
	return domain.Quote{
		Price:  payload.Quote.Price,
		Shares: payload.Quote.Shares,
		AsOf:   payload.Quote.AsOf,
		Source: payload.Source,
	}, nil
}

// Governance normalizes a governance payload. Absent sections stay unknown so
// the scorer can tell "none reported" from "not reported".
func (n *Normalizer) Governance(payload *domain.RawPayload, asOf time.Time) (*domain.GovernanceProfile, error) {
	if payload == nil || payload.Governance == nil {
		return nil, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetGovernance,
			Detail:   "payload has no governance section",
		}
	}
	raw := payload.Governance
	profile := &domain.GovernanceProfile{
		AsOf:           asOf,
		AuditorsKnown:  raw.AuditorsReported,
		FilingsKnown:   raw.FilingsReported,
		PenaltiesKnown: raw.PenaltiesReported,
		Source:         payload.Source,
	}

	if raw.PromoterPledgePct != nil {
		profile.PromoterPledgePct = null.FloatFrom(*raw.PromoterPledgePct)
	}

	factor, ok := unitFactor(payload.Unit)
	if !ok && (raw.RelatedParty != "" || raw.Revenue != "") {
		return nil, newError(domain.ReasonMalformedUnit, payload, "unknown unit %q", payload.Unit)
	}
	if ok {
		var err error
		if profile.RelatedPartyCrore, err = scaled(raw.RelatedParty, factor); err != nil {
			return nil, newError(domain.ReasonMalformedUnit, payload, "related party value: %v", err)
		}
		if profile.RevenueCrore, err = scaled(raw.Revenue, factor); err != nil {
			return nil, newError(domain.ReasonMalformedUnit, payload, "revenue: %v", err)
		}
	}

	for _, a := range raw.Auditors {
		appointed, err := ParseDate(a.AppointedOn)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "auditor %s: %v", a.Name, err)
		}
		profile.Auditors = append(profile.Auditors, domain.AuditorAppointment{Name: strings.TrimSpace(a.Name), AppointedOn: appointed, Change: a.Change})
	}
	sort.Slice(profile.Auditors, func(i, j int) bool {
		return profile.Auditors[i].AppointedOn.Before(profile.Auditors[j].AppointedOn)
	})

	for _, f := range raw.Filings {
		periodEnd, err := ParseDate(f.PeriodEnd)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "filing period: %v", err)
		}
		filedOn, err := ParseDate(f.FiledOn)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "filing date: %v", err)
		}
		profile.Filings = append(profile.Filings, domain.Filing{PeriodEnd: periodEnd, FiledOn: filedOn})
	}

	for _, p := range raw.Penalties {
		date, err := ParseDate(p.Date)
		if err != nil {
			return nil, newError(domain.ReasonPeriodAmbiguous, payload, "penalty date: %v", err)
		}
		profile.Penalties = append(profile.Penalties, domain.Penalty{
			Date:        date,
			Authority:   p.Authority,
			Description: p.Description,
		})
	}

	return profile, nil
}

// UniverseFilter bounds the listing universe by the market cap the listing
// source reports. Zero bounds are open.
type UniverseFilter struct {
	MinCapCrore float64
	MaxCapCrore float64
}

// OutsideBand is a listing dropped because the market cap its source
// reports falls outside the universe band
type OutsideBand struct {
	Entity   domain.Entity
	CapCrore float64
}

// Universe normalizes a universe payload into entities. Dual listings of the
// same company are collapsed to their first occurrence. Listings whose
// reported cap falls outside the filter come back separately so the run can
// report them.
func (n *Normalizer) Universe(payload *domain.RawPayload, filter UniverseFilter) ([]domain.Entity, []OutsideBand, error) {
	if payload == nil || len(payload.Listings) == 0 {
		return nil, nil, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetUniverse,
			Detail:   "payload has no listings",
		}
	}

	seenNames := make(map[string]bool, len(payload.Listings))
	seenIDs := make(map[string]bool, len(payload.Listings))
	entities := make([]domain.Entity, 0, len(payload.Listings))
	var outside []OutsideBand

	for _, listing := range payload.Listings {
		symbol := strings.ToUpper(strings.TrimSpace(listing.Symbol))
		exchange := strings.ToUpper(strings.TrimSpace(listing.Exchange))
		if symbol == "" || exchange == "" {
			continue
		}

		entity := domain.Entity{
			Exchange: exchange,
			Symbol:   symbol,
			Name:     strings.TrimSpace(listing.Name),
			Sector:   strings.TrimSpace(listing.Sector),
			ISIN:     strings.TrimSpace(listing.ISIN),
		}

		nameKey := strings.ToLower(entity.Name)
		if seenIDs[entity.ID()] || (nameKey != "" && seenNames[nameKey]) {
			continue
		}
		seenIDs[entity.ID()] = true
		if nameKey != "" {
			seenNames[nameKey] = true
		}

		if listing.MarketCapRupee > 0 {
			capCrore := listing.MarketCapRupee / domain.RupeesPerCrore
			if (filter.MinCapCrore > 0 && capCrore < filter.MinCapCrore) ||
				(filter.MaxCapCrore > 0 && capCrore > filter.MaxCapCrore) {
				outside = append(outside, OutsideBand{Entity: entity, CapCrore: capCrore})
				continue
			}
		}

		entities = append(entities, entity)
	}

	n.log.Debug().
		Int("listings", len(payload.Listings)).
		Int("entities", len(entities)).
		Int("outside_cap_band", len(outside)).
		Msg("Normalized universe")

	return entities, outside, nil
}

// Rating extracts the rating summary from a credit-rating payload
func (n *Normalizer) Rating(payload *domain.RawPayload) (*domain.RatingSummary, error) {
	if payload == nil || payload.Rating == nil {
		return nil, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetCreditRating,
			Detail:   "payload has no rating summary",
		}
	}
	summary := *payload.Rating
	if summary.DocumentURL == "" && payload.Document != nil {
		summary.DocumentURL = payload.Document.URL
	}
	return &summary, nil
}
