// Package di provides dependency injection for services.
package di

import (
	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/governance"
	"github.com/aristath/screener/internal/normalize"
	"github.com/aristath/screener/internal/screening"
	"github.com/aristath/screener/internal/valuation"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the cache database.
// Without a database both stay nil and the store keeps entries in memory.
func InitializeRepositories(container *Container, log zerolog.Logger) {
	if container.CacheDB == nil {
		log.Warn().Msg("No cache database, cache and reports are not persisted")
		return
	}
	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.ReportRepo = screening.NewReportRepository(container.CacheDB.Conn())
}

// InitializeServices creates the cache store, the pipeline stages and the
// screening service. Sources must be initialized first.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	policy := cfg.Policy

	container.CacheStore = clientdata.NewStore(container.CacheRepo, policy.TTLs(), log)

	container.Normalizer = normalize.New(policy.NormalizerConfig(), log)
	container.Projector = valuation.NewProjector(policy.ProjectorConfig(), log)
	container.Calculator = valuation.NewCalculator(policy.CalculatorConfig())
	container.Scorer = governance.NewScorer(policy.GovernanceConfig(), log)

	container.Pipeline = screening.NewPipeline(
		policy.PipelineConfig(),
		container.CacheStore,
		container.Resolver,
		container.Normalizer,
		container.Projector,
		container.Calculator,
		container.Scorer,
		log,
	)
	container.ScreeningService = screening.NewService(container.Pipeline, container.ReportRepo, log)

	log.Info().
		Bool("persistent_cache", container.CacheStore.Persistent()).
		Int("max_concurrency", policy.Pipeline.MaxConcurrency).
		Msg("Services initialized")
}
