// Package valuation projects next-period earnings from historical growth and
// turns the projection into a forward P/E screening decision.
package valuation

import (
	"math"

	"github.com/aristath/screener/internal/domain"
	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// WeightingScheme selects how growth rates are weighted in the trend
type WeightingScheme string

const (
	// WeightingLinear weights rates 1..n, newest heaviest
	WeightingLinear WeightingScheme = "linear"
	// WeightingExponential weights rates decay^(age), newest weight 1
	WeightingExponential WeightingScheme = "exponential"
	// WeightingEqual weights all rates the same
	WeightingEqual WeightingScheme = "equal"
)

// ProjectorConfig holds growth projection policy
type ProjectorConfig struct {
	MinPeriods       int
	LookbackPeriods  int
	Weighting        WeightingScheme
	ExponentialDecay float64
	MinGrowth        float64
	MaxGrowth        float64
}

// DefaultProjectorConfig returns the default projection policy
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		MinPeriods:       4,
		LookbackPeriods:  8,
		Weighting:        WeightingLinear,
		ExponentialDecay: 0.8,
		MinGrowth:        -0.5,
		MaxGrowth:        1.0,
	}
}

// Projector computes growth trends and projected EPS
type Projector struct {
	cfg ProjectorConfig
	log zerolog.Logger
}

// NewProjector creates a projector, filling unset fields with defaults
func NewProjector(cfg ProjectorConfig, log zerolog.Logger) *Projector {
	defaults := DefaultProjectorConfig()
	if cfg.MinPeriods < 2 {
		cfg.MinPeriods = defaults.MinPeriods
	}
	if cfg.LookbackPeriods < 1 {
		cfg.LookbackPeriods = defaults.LookbackPeriods
	}
	if cfg.Weighting == "" {
		cfg.Weighting = defaults.Weighting
	}
	if cfg.ExponentialDecay <= 0 || cfg.ExponentialDecay > 1 {
		cfg.ExponentialDecay = defaults.ExponentialDecay
	}
	if cfg.MinGrowth == 0 && cfg.MaxGrowth == 0 {
		cfg.MinGrowth, cfg.MaxGrowth = defaults.MinGrowth, defaults.MaxGrowth
	}
	return &Projector{
		cfg: cfg,
		log: log.With().Str("component", "growth_projector").Logger(),
	}
}

// Project computes the growth projection for history. currentShares is used
// to derive EPS from PAT when the latest period has no EPS; pass 0 if unknown.
func (p *Projector) Project(history *domain.FinancialHistory, currentShares float64) (*domain.GrowthProjection, error) {
	present := history.Present()
	if len(present) < p.cfg.MinPeriods {
		return nil, &domain.InsufficientHistoryError{Required: p.cfg.MinPeriods, Available: len(present)}
	}

	clean := 0
	for _, r := range present {
		if !r.LowConfidence {
			clean++
		}
	}
	reduced := clean < p.cfg.MinPeriods

	projection := &domain.GrowthProjection{
		BasePeriod:    present[len(present)-1].Period,
		RevenueGrowth: growthRates(present, func(r domain.FinancialRecord) null.Float { return r.Revenue }),
		PATGrowth:     growthRates(present, func(r domain.FinancialRecord) null.Float { return r.PAT }),
	}

	patTrend, ok := p.trend(projection.PATGrowth, reduced)
	if !ok && !reduced {
		// Every clean rate touches a low-confidence period
		reduced = true
		patTrend, ok = p.trend(projection.PATGrowth, reduced)
	}
	if !ok {
		return nil, &domain.InsufficientHistoryError{Required: p.cfg.MinPeriods, Available: len(projection.PATGrowth) + 1}
	}
	projection.PATTrend = patTrend
	projection.RevenueTrend, _ = p.trend(projection.RevenueGrowth, reduced)
	if reduced {
		projection.Annotations = append(projection.Annotations, domain.AnnotationReducedConfidence)
	}

	applied := patTrend
	if applied < p.cfg.MinGrowth {
		applied = p.cfg.MinGrowth
	} else if applied > p.cfg.MaxGrowth {
		applied = p.cfg.MaxGrowth
	}
	if applied != patTrend {
		projection.Annotations = append(projection.Annotations, domain.AnnotationGrowthClamped)
		p.log.Debug().
			Str("entity", history.Entity.ID()).
			Float64("trend", patTrend).
			Float64("applied", applied).
			Msg("Clamped PAT growth trend")
	}
	projection.AppliedGrowth = applied

	lastEPS, derived, ok := lastEPS(present[len(present)-1], currentShares)
	if !ok {
		return nil, &domain.NormalizationError{
			Reason:   domain.ReasonMissingField,
			FieldSet: domain.FieldSetQuarterly,
			Source:   history.Source,
			Detail:   "latest period has neither EPS nor PAT with a share count",
		}
	}
	if derived {
		projection.Annotations = append(projection.Annotations, domain.AnnotationEPSDerived)
	}

	projection.LastEPS = lastEPS
	projection.ProjectedEPS = lastEPS * (1 + applied)

	return projection, nil
}

// growthRates computes period-over-period rates between consecutive present
// periods. Pairs separated by a gap or with a zero base are skipped.
func growthRates(records []domain.FinancialRecord, metric func(domain.FinancialRecord) null.Float) []domain.GrowthRate {
	var rates []domain.GrowthRate
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.Period.Index()-prev.Period.Index() != 1 {
			continue
		}
		a, b := metric(prev), metric(cur)
		if !a.Valid || !b.Valid || a.Float64 == 0 {
			continue
		}
		rates = append(rates, domain.GrowthRate{
			From:          prev.Period,
			To:            cur.Period,
			Rate:          (b.Float64 - a.Float64) / math.Abs(a.Float64),
			LowConfidence: prev.LowConfidence || cur.LowConfidence,
		})
	}
	return rates
}

// trend returns the weighted mean of the trailing lookback rates. Rates
// touching low-confidence periods are excluded unless reduced is set, in
// which case all rates are averaged without weights.
func (p *Projector) trend(rates []domain.GrowthRate, reduced bool) (float64, bool) {
	selected := make([]float64, 0, len(rates))
	for _, r := range rates {
		if reduced || !r.LowConfidence {
			selected = append(selected, r.Rate)
		}
	}
	if len(selected) > p.cfg.LookbackPeriods {
		selected = selected[len(selected)-p.cfg.LookbackPeriods:]
	}
	if len(selected) == 0 {
		return 0, false
	}

	if reduced {
		return stat.Mean(selected, nil), true
	}
	return stat.Mean(selected, p.weights(len(selected))), true
}

// weights returns n weights ordered oldest to newest
func (p *Projector) weights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		switch p.cfg.Weighting {
		case WeightingEqual:
			w[i] = 1
		case WeightingExponential:
			w[i] = math.Pow(p.cfg.ExponentialDecay, float64(n-1-i))
		default:
			w[i] = float64(i + 1)
		}
	}
	return w
}

// lastEPS returns the EPS of the latest period, deriving it from PAT (crore)
// and the share count when the source did not report it.
func lastEPS(latest domain.FinancialRecord, currentShares float64) (float64, bool, bool) {
	if latest.EPS.Valid {
		return latest.EPS.Float64, false, true
	}
	if !latest.PAT.Valid {
		return 0, false, false
	}
	shares := currentShares
	if latest.Shares.Valid && latest.Shares.Float64 > 0 {
		shares = latest.Shares.Float64
	}
	if shares <= 0 {
		return 0, false, false
	}
	return latest.PAT.Float64 * domain.RupeesPerCrore / shares, true, true
}
