// Package di provides dependency injection for database connections.
package di

import (
	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/config"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the cache database (client_data.db) and applies
// its schema. A database that cannot be opened or recreated is not fatal: the
// container is returned without one and the cache runs in memory.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) *Container {
	container := &Container{}

	cacheDB, err := clientdata.OpenDatabase(cfg.CacheDatabasePath(), log)
	if err != nil {
		log.Warn().Err(err).Msg("Cache database unavailable, running without persistence")
		return container
	}
	container.CacheDB = cacheDB

	log.Info().Str("path", cacheDB.Path()).Msg("Cache database initialized")
	return container
}
