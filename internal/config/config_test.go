package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("SCREENER_DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.DirExists(t, dataDir)
	assert.Equal(t, filepath.Join(dataDir, "client_data.db"), cfg.CacheDatabasePath())
	assert.Equal(t, filepath.Join(dataDir, "universe.csv"), cfg.UniverseFile)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30.0, cfg.Policy.Valuation.MaxForwardPE)
	assert.Equal(t, valuation.DefaultCalculatorConfig(), cfg.Policy.CalculatorConfig())
	assert.Equal(t, valuation.DefaultProjectorConfig(), cfg.Policy.ProjectorConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())
	t.Setenv("SCREENER_PORT", "9001")
	t.Setenv("SCREENER_MAX_FORWARD_PE", "25")
	t.Setenv("SCREENER_SOURCE_MIN_INTERVAL", "2s")
	t.Setenv("SCREENER_MAX_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 25.0, cfg.Policy.Valuation.MaxForwardPE)
	assert.Equal(t, 2*time.Second, cfg.Policy.GuardConfig("nse").MinInterval)
	assert.Equal(t, DefaultPolicy().Pipeline.MaxConcurrency, cfg.Policy.Pipeline.MaxConcurrency)
}

func TestLoad_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[valuation]
max_forward_pe = 20
min_market_cap_crore = 500

[projection]
weighting = "exponential"
lookback_periods = 6

[governance]
max_pledge_pct = 40
[governance.severities]
high-pledge = "critical"

[pipeline]
governance_exclude_at = "critical"

[sources]
timeout = "10s"
[sources.intervals]
trendlyne = "3s"

[ttl]
price = "5m"
`), 0644))

	t.Setenv("SCREENER_DATA_DIR", dir)
	t.Setenv("SCREENER_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	p := cfg.Policy

	assert.Equal(t, 20.0, p.CalculatorConfig().MaxForwardPE)
	assert.Equal(t, 500.0, p.CalculatorConfig().MinMarketCapCrore)
	assert.Equal(t, 10000.0, p.CalculatorConfig().MaxMarketCapCrore, "unset values keep defaults")
	assert.Equal(t, valuation.WeightingExponential, p.ProjectorConfig().Weighting)
	assert.Equal(t, 6, p.ProjectorConfig().LookbackPeriods)

	gov := p.GovernanceConfig()
	assert.Equal(t, 40.0, gov.MaxPledgePct)
	assert.Equal(t, domain.SeverityCritical, gov.Severities[domain.FlagHighPledge])

	assert.Equal(t, domain.SeverityCritical, p.PipelineConfig().GovernanceExcludeAt)
	assert.Equal(t, 3*time.Second, p.GuardConfig("trendlyne").MinInterval)
	assert.Equal(t, time.Second, p.GuardConfig("eodhd").MinInterval)
	assert.Equal(t, 10*time.Second, p.GuardConfig("eodhd").Timeout)

	ttls := p.TTLs()
	assert.Equal(t, 5*time.Minute, ttls.For(domain.FieldSetPrice))
	assert.Equal(t, 48*time.Hour, ttls.For(domain.FieldSetQuarterly))
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"inverted market cap band", func(p *Policy) { p.Valuation.MinMarketCapCrore = 5000; p.Valuation.MaxMarketCapCrore = 100 }},
		{"unknown weighting", func(p *Policy) { p.Projection.Weighting = "quadratic" }},
		{"max growth below min", func(p *Policy) { p.Projection.MaxGrowth = -0.9 }},
		{"unknown ttl field set", func(p *Policy) { p.TTL["dividends"] = Duration(time.Hour) }},
		{"unknown severity", func(p *Policy) { p.Governance.Severities = map[string]string{"high-pledge": "dire"} }},
		{"zero concurrency", func(p *Policy) { p.Pipeline.MaxConcurrency = 0 }},
		{"pledge above 100", func(p *Policy) { p.Governance.MaxPledgePct = 120 }},
	}

	require.NoError(t, DefaultPolicy().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestLoad_RatingsRequireAPIKey(t *testing.T) {
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())
	t.Setenv("SCREENER_FETCH_RATINGS", "true")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[valuation\nmax_forward_pe = "), 0644))

	t.Setenv("SCREENER_DATA_DIR", dir)
	t.Setenv("SCREENER_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
