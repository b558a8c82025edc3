/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the command for access to services.
 */
package di

import (
	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/governance"
	"github.com/aristath/screener/internal/normalize"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/screening"
	"github.com/aristath/screener/internal/sources"
	"github.com/aristath/screener/internal/valuation"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: one cache database (client_data.db), nil when running without persistence
 * - Cache: repository and TTL-aware store over the cache database
 * - Sources: guarded adapters registered per field set in the resolver
 * - Stages: normalizer, projector, calculator, governance scorer
 * - Screening: pipeline, report repository and the run service
 * - Scheduler: cron scheduler for the background jobs
 */
type Container struct {
	// Database (nil when the cache database could not be opened)
	CacheDB *database.DB

	// Cache
	CacheRepo  *clientdata.Repository
	CacheStore *clientdata.Store

	// Sources
	Upstreams *sources.Upstreams
	Resolver  *sources.Resolver

	// Stages
	Normalizer *normalize.Normalizer
	Projector  *valuation.Projector
	Calculator *valuation.Calculator
	Scorer     *governance.Scorer

	// Screening
	Pipeline         *screening.Pipeline
	ReportRepo       *screening.ReportRepository
	ScreeningService *screening.Service

	// Scheduler
	Scheduler *scheduler.Scheduler
}

/**
 * JobInstances holds references to all registered jobs for manual triggering.
 */
type JobInstances struct {
	Screening    *screening.Job
	CacheCleanup *clientdata.CleanupJob
}

// Close releases the cache database
func (c *Container) Close() error {
	if c == nil || c.CacheDB == nil {
		return nil
	}
	return c.CacheDB.Close()
}
