package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/governance"
	"github.com/aristath/screener/internal/normalize"
	"github.com/aristath/screener/internal/screening"
	"github.com/aristath/screener/internal/sources"
	"github.com/aristath/screener/internal/valuation"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration read from TOML as a string ("36h", "1s")
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Policy is the screening policy. Every field has a default; a policy file
// only needs the values it changes.
type Policy struct {
	Valuation  ValuationPolicy  `toml:"valuation"`
	Projection ProjectionPolicy `toml:"projection"`
	Normalize  NormalizePolicy  `toml:"normalize"`
	Governance GovernancePolicy `toml:"governance"`
	Pipeline   PipelinePolicy   `toml:"pipeline"`
	Sources    SourcesPolicy    `toml:"sources"`
	TTL        TTLPolicy        `toml:"ttl"`
	Analysis   AnalysisPolicy   `toml:"analysis"`
}

// ValuationPolicy is the screening predicate
type ValuationPolicy struct {
	MaxForwardPE          float64 `toml:"max_forward_pe" validate:"gt=0"`
	MinMarketCapCrore     float64 `toml:"min_market_cap_crore" validate:"gte=0"`
	MaxMarketCapCrore     float64 `toml:"max_market_cap_crore" validate:"gte=0"`
	AnnualizeQuarterlyEPS bool    `toml:"annualize_quarterly_eps"`
}

// ProjectionPolicy controls the growth trend
type ProjectionPolicy struct {
	LookbackPeriods  int     `toml:"lookback_periods" validate:"min=1,max=40"`
	Weighting        string  `toml:"weighting" validate:"oneof=linear exponential equal"`
	ExponentialDecay float64 `toml:"exponential_decay" validate:"gt=0,lte=1"`
	MinGrowth        float64 `toml:"min_growth" validate:"gte=-1"`
	MaxGrowth        float64 `toml:"max_growth" validate:"gtfield=MinGrowth"`
}

// NormalizePolicy controls outlier quarantine and label alignment
type NormalizePolicy struct {
	OutlierMultiple      float64 `toml:"outlier_multiple" validate:"gt=0"`
	OutlierWindow        int     `toml:"outlier_window" validate:"min=2"`
	FiscalYearStartMonth int     `toml:"fiscal_year_start_month" validate:"min=1,max=12"`
}

// GovernancePolicy holds rule thresholds and severity overrides
type GovernancePolicy struct {
	AuditorLookback      Duration          `toml:"auditor_lookback"`
	MaxAuditorChanges    int               `toml:"max_auditor_changes" validate:"min=0"`
	MaxPledgePct         float64           `toml:"max_pledge_pct" validate:"gte=0,lte=100"`
	MaxRelatedPartyRatio float64           `toml:"max_related_party_ratio" validate:"gte=0"`
	FilingDueDays        int               `toml:"filing_due_days" validate:"min=0"`
	FilingGraceDays      int               `toml:"filing_grace_days" validate:"min=0"`
	Severities           map[string]string `toml:"severities"`
}

// PipelinePolicy controls the screening run
type PipelinePolicy struct {
	MaxConcurrency int      `toml:"max_concurrency" validate:"min=1,max=128"`
	FetchRatings   bool     `toml:"fetch_ratings"`
	ExcludeAt      string   `toml:"governance_exclude_at" validate:"oneof=none low medium high critical"`
	RunTimeout     Duration `toml:"run_timeout"`
	// Universe market-cap band applied to listings that report a market cap.
	// Listings outside it are reported as predicate failures without fetching.
	UniverseMinCapCrore float64 `toml:"universe_min_cap_crore" validate:"gte=0"`
	UniverseMaxCapCrore float64 `toml:"universe_max_cap_crore" validate:"gte=0"`
}

// SourcesPolicy controls adapter pacing
type SourcesPolicy struct {
	MinInterval         Duration            `toml:"min_interval"`
	Timeout             Duration            `toml:"timeout"`
	UpstreamConcurrency int                 `toml:"upstream_concurrency" validate:"min=1,max=32"`
	Intervals           map[string]Duration `toml:"intervals"` // per-adapter override of min_interval
}

// TTLPolicy overrides cache freshness per field set, keyed by field set name
type TTLPolicy map[string]Duration

// AnalysisPolicy configures the rating summarizer
type AnalysisPolicy struct {
	Model     string   `toml:"model"`
	MaxTokens int      `toml:"max_tokens" validate:"min=0"`
	Timeout   Duration `toml:"timeout"`
	Cooldown  Duration `toml:"cooldown"`
}

// DefaultPolicy returns the built-in policy
func DefaultPolicy() *Policy {
	calc := valuation.DefaultCalculatorConfig()
	proj := valuation.DefaultProjectorConfig()
	norm := normalize.DefaultConfig()
	gov := governance.DefaultConfig()

	return &Policy{
		Valuation: ValuationPolicy{
			MaxForwardPE:          calc.MaxForwardPE,
			MinMarketCapCrore:     calc.MinMarketCapCrore,
			MaxMarketCapCrore:     calc.MaxMarketCapCrore,
			AnnualizeQuarterlyEPS: calc.AnnualizeQuarterlyEPS,
		},
		Projection: ProjectionPolicy{
			LookbackPeriods:  proj.LookbackPeriods,
			Weighting:        string(proj.Weighting),
			ExponentialDecay: proj.ExponentialDecay,
			MinGrowth:        proj.MinGrowth,
			MaxGrowth:        proj.MaxGrowth,
		},
		Normalize: NormalizePolicy{
			OutlierMultiple:      norm.OutlierMultiple,
			OutlierWindow:        norm.OutlierWindow,
			FiscalYearStartMonth: norm.FiscalYearStartMonth,
		},
		Governance: GovernancePolicy{
			AuditorLookback:      Duration(gov.AuditorLookback),
			MaxAuditorChanges:    gov.MaxAuditorChanges,
			MaxPledgePct:         gov.MaxPledgePct,
			MaxRelatedPartyRatio: gov.MaxRelatedPartyRatio,
			FilingDueDays:        gov.FilingDueDays,
			FilingGraceDays:      gov.FilingGraceDays,
		},
		Pipeline: PipelinePolicy{
			MaxConcurrency: screening.DefaultMaxConcurrency,
			ExcludeAt:      "none",
			RunTimeout:     Duration(screening.DefaultRunTimeout),
		},
		Sources: SourcesPolicy{
			MinInterval:         Duration(sources.DefaultMinInterval),
			Timeout:             Duration(sources.DefaultTimeout),
			UpstreamConcurrency: 2,
		},
		TTL: TTLPolicy{},
		Analysis: AnalysisPolicy{
			Timeout:  Duration(2 * time.Minute),
			Cooldown: Duration(6 * time.Hour),
		},
	}
}

// LoadFile overlays the TOML policy file at path onto p
func (p *Policy) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return nil
}

// Validate checks the policy's constraints
func (p *Policy) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if p.Valuation.MaxMarketCapCrore > 0 && p.Valuation.MaxMarketCapCrore < p.Valuation.MinMarketCapCrore {
		return fmt.Errorf("invalid policy: max_market_cap_crore %.0f below min_market_cap_crore %.0f",
			p.Valuation.MaxMarketCapCrore, p.Valuation.MinMarketCapCrore)
	}
	for name := range p.TTL {
		if !domain.FieldSet(name).Valid() {
			return fmt.Errorf("invalid policy: unknown field set %q in [ttl]", name)
		}
	}
	for kind, severity := range p.Governance.Severities {
		if _, err := domain.ParseSeverity(severity); err != nil {
			return fmt.Errorf("invalid policy: governance severity for %s: %w", kind, err)
		}
	}
	return nil
}

// CalculatorConfig returns the forward valuation predicate
func (p *Policy) CalculatorConfig() valuation.CalculatorConfig {
	return valuation.CalculatorConfig{
		MaxForwardPE:          p.Valuation.MaxForwardPE,
		MinMarketCapCrore:     p.Valuation.MinMarketCapCrore,
		MaxMarketCapCrore:     p.Valuation.MaxMarketCapCrore,
		AnnualizeQuarterlyEPS: p.Valuation.AnnualizeQuarterlyEPS,
	}
}

// ProjectorConfig returns the growth projection policy
func (p *Policy) ProjectorConfig() valuation.ProjectorConfig {
	cfg := valuation.DefaultProjectorConfig()
	cfg.LookbackPeriods = p.Projection.LookbackPeriods
	cfg.Weighting = valuation.WeightingScheme(p.Projection.Weighting)
	cfg.ExponentialDecay = p.Projection.ExponentialDecay
	cfg.MinGrowth = p.Projection.MinGrowth
	cfg.MaxGrowth = p.Projection.MaxGrowth
	return cfg
}

// NormalizerConfig returns the normalizer tuning
func (p *Policy) NormalizerConfig() normalize.Config {
	return normalize.Config{
		OutlierMultiple:      p.Normalize.OutlierMultiple,
		OutlierWindow:        p.Normalize.OutlierWindow,
		FiscalYearStartMonth: p.Normalize.FiscalYearStartMonth,
	}
}

// GovernanceConfig returns the scorer thresholds. Severities were checked
// by Validate.
func (p *Policy) GovernanceConfig() governance.Config {
	severities := make(map[domain.FlagKind]domain.Severity, len(p.Governance.Severities))
	for kind, name := range p.Governance.Severities {
		if severity, err := domain.ParseSeverity(name); err == nil {
			severities[domain.FlagKind(kind)] = severity
		}
	}
	return governance.Config{
		AuditorLookback:      time.Duration(p.Governance.AuditorLookback),
		MaxAuditorChanges:    p.Governance.MaxAuditorChanges,
		MaxPledgePct:         p.Governance.MaxPledgePct,
		MaxRelatedPartyRatio: p.Governance.MaxRelatedPartyRatio,
		FilingDueDays:        p.Governance.FilingDueDays,
		FilingGraceDays:      p.Governance.FilingGraceDays,
		Severities:           severities,
	}
}

// PipelineConfig returns the screening run policy
func (p *Policy) PipelineConfig() screening.Config {
	excludeAt, _ := domain.ParseSeverity(p.Pipeline.ExcludeAt)
	return screening.Config{
		MaxConcurrency:      p.Pipeline.MaxConcurrency,
		GovernanceExcludeAt: excludeAt,
		FetchRatings:        p.Pipeline.FetchRatings,
		Universe: normalize.UniverseFilter{
			MinCapCrore: p.Pipeline.UniverseMinCapCrore,
			MaxCapCrore: p.Pipeline.UniverseMaxCapCrore,
		},
	}
}

// GuardConfig returns the pacing for the named adapter
func (p *Policy) GuardConfig(adapter string) sources.GuardConfig {
	interval := p.Sources.MinInterval
	if override, ok := p.Sources.Intervals[adapter]; ok {
		interval = override
	}
	return sources.GuardConfig{
		MinInterval: time.Duration(interval),
		Timeout:     time.Duration(p.Sources.Timeout),
	}
}

// TTLs returns the cache freshness policy with overrides applied
func (p *Policy) TTLs() clientdata.TTLPolicy {
	overrides := make(clientdata.TTLPolicy, len(p.TTL))
	for name, ttl := range p.TTL {
		overrides[domain.FieldSet(name)] = time.Duration(ttl)
	}
	return clientdata.DefaultTTLs().Merge(overrides)
}
