package valuation

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
)

// Predicate check names recorded on a failed valuation
const (
	CheckForwardPE   = "forward-pe"
	CheckMarketCapLo = "market-cap-below-min"
	CheckMarketCapHi = "market-cap-above-max"
)

// CalculatorConfig holds the screening predicate
type CalculatorConfig struct {
	MaxForwardPE      float64
	MinMarketCapCrore float64
	MaxMarketCapCrore float64
	// AnnualizeQuarterlyEPS multiplies a quarterly projected EPS by four
	// before dividing; off by default so P/E is quarter-on-quarter
	AnnualizeQuarterlyEPS bool
}

// DefaultCalculatorConfig returns the default predicate
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		MaxForwardPE:      30,
		MinMarketCapCrore: 100,
		MaxMarketCapCrore: 10000,
	}
}

// Calculator computes forward P/E and applies the screening predicate
type Calculator struct {
	cfg CalculatorConfig
}

// NewCalculator creates a calculator
func NewCalculator(cfg CalculatorConfig) *Calculator {
	if cfg.MaxForwardPE <= 0 {
		cfg.MaxForwardPE = DefaultCalculatorConfig().MaxForwardPE
	}
	return &Calculator{cfg: cfg}
}

// Evaluate computes the forward valuation from a projection and a fresh quote.
// Projected EPS at or below zero yields *domain.NonPositiveEPSError.
func (c *Calculator) Evaluate(projection *domain.GrowthProjection, kind domain.PeriodKind, quote domain.Quote) (*domain.Valuation, error) {
	if projection == nil {
		return nil, fmt.Errorf("nil projection")
	}

	eps := projection.ProjectedEPS
	basis := "next-period"
	if c.cfg.AnnualizeQuarterlyEPS && kind == domain.PeriodQuarter {
		eps *= 4
		basis = "annualized"
	}
	if eps <= 0 {
		return nil, &domain.NonPositiveEPSError{ProjectedEPS: eps}
	}
	if quote.Price <= 0 {
		return nil, fmt.Errorf("quote has no positive price")
	}

	valuation := &domain.Valuation{
		Price:          quote.Price,
		ProjectedEPS:   eps,
		EPSBasis:       basis,
		ForwardPE:      quote.Price / eps,
		MarketCapCrore: quote.MarketCapCrore(),
	}

	if valuation.ForwardPE >= c.cfg.MaxForwardPE {
		valuation.FailedChecks = append(valuation.FailedChecks, CheckForwardPE)
	}
	if c.cfg.MinMarketCapCrore > 0 && valuation.MarketCapCrore < c.cfg.MinMarketCapCrore {
		valuation.FailedChecks = append(valuation.FailedChecks, CheckMarketCapLo)
	}
	if c.cfg.MaxMarketCapCrore > 0 && valuation.MarketCapCrore > c.cfg.MaxMarketCapCrore {
		valuation.FailedChecks = append(valuation.FailedChecks, CheckMarketCapHi)
	}
	valuation.Passed = len(valuation.FailedChecks) == 0

	return valuation, nil
}
