// Package di provides dependency injection for data source adapters.
package di

import (
	"net/url"
	"time"

	"github.com/aristath/screener/internal/clients/analysis"
	"github.com/aristath/screener/internal/clients/eodhd"
	"github.com/aristath/screener/internal/clients/nse"
	"github.com/aristath/screener/internal/clients/screener"
	"github.com/aristath/screener/internal/clients/trendlyne"
	"github.com/aristath/screener/internal/clients/universefile"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
	"github.com/rs/zerolog"
)

// InitializeSources builds every adapter, wraps it in a guard and registers
// the fallback chains. Adapters that need a missing credential are left out
// of their chains.
func InitializeSources(container *Container, cfg *config.Config, log zerolog.Logger) {
	policy := cfg.Policy
	container.Upstreams = sources.NewUpstreams(policy.Sources.UpstreamConcurrency)
	container.Resolver = sources.NewResolver(log)

	guard := func(adapter sources.Adapter, baseURL string) sources.Adapter {
		return sources.NewGuard(adapter, policy.GuardConfig(adapter.Name()), container.Upstreams.For(hostOf(baseURL)), log)
	}

	nseAdapter := guard(nse.NewAdapter(nse.NewClient(log)), nse.DefaultBaseURL)
	trendlyneAdapter := guard(trendlyne.NewAdapter(trendlyne.NewClient(log)), trendlyne.DefaultBaseURL)
	screenerSource := screener.NewAdapter(screener.NewClient(log))
	screenerAdapter := guard(screenerSource, screener.DefaultBaseURL)
	// The local file needs no pacing
	fileAdapter := universefile.NewAdapter(cfg.UniverseFile)

	var eodhdAdapter sources.Adapter
	if cfg.EODHDAPIKey != "" {
		eodhdAdapter = guard(eodhd.NewAdapter(eodhd.NewClient(cfg.EODHDAPIKey, log)), eodhd.DefaultBaseURL)
	} else {
		log.Warn().Msg("EODHD API key not configured, fundamentals come from Trendlyne only")
	}

	container.Resolver.Register(domain.FieldSetUniverse, nseAdapter, fileAdapter)
	container.Resolver.Register(domain.FieldSetQuarterly, present(eodhdAdapter, trendlyneAdapter)...)
	container.Resolver.Register(domain.FieldSetPrice, present(nseAdapter, eodhdAdapter)...)
	container.Resolver.Register(domain.FieldSetActions, present(eodhdAdapter)...)
	container.Resolver.Register(domain.FieldSetGovernance, screenerAdapter)

	if cfg.AnthropicAPIKey != "" {
		summarizer := analysis.NewClaudeSummarizer(analysis.Config{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     policy.Analysis.Model,
			MaxTokens: policy.Analysis.MaxTokens,
			Timeout:   time.Duration(policy.Analysis.Timeout),
		}, log)
		ratings := analysis.NewAdapter(screenerSource, summarizer, time.Duration(policy.Analysis.Cooldown), log)
		container.Resolver.Register(domain.FieldSetCreditRating, guard(ratings, screener.DefaultBaseURL))
	} else {
		log.Info().Msg("Anthropic API key not configured, credit ratings disabled")
	}

	for _, fs := range domain.AllFieldSets {
		log.Info().
			Str("field_set", string(fs)).
			Strs("chain", container.Resolver.Chain(fs)).
			Msg("Source chain registered")
	}
}

// present drops adapters that were not configured
func present(adapters ...sources.Adapter) []sources.Adapter {
	out := make([]sources.Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// hostOf returns the host of a base URL, which keys the shared upstream cap
func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
