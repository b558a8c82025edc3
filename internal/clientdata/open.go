package clientdata

import (
	"context"
	"time"

	"github.com/aristath/screener/internal/database"
	"github.com/rs/zerolog"
)

// OpenDatabase opens and migrates the cache database at path. A file that
// cannot be opened, migrated or passes no integrity check is moved aside and
// recreated once. A nil DB with a non-nil error means the caller should run
// without persistence.
func OpenDatabase(path string, log zerolog.Logger) (*database.DB, error) {
	log = log.With().Str("component", "cache_store").Logger()

	db, err := openAndCheck(path)
	if err == nil {
		return db, nil
	}

	log.Warn().Err(err).Str("path", path).Msg("Cache database unusable, recreating")

	moved, moveErr := database.MoveAside(path, time.Now())
	if moveErr != nil {
		log.Error().Err(moveErr).Msg("Failed to move cache database aside")
		return nil, moveErr
	}
	log.Info().Str("moved_to", moved).Msg("Moved broken cache database aside")

	db, err = openAndCheck(path)
	if err != nil {
		log.Error().Err(err).Msg("Cache database still unusable, running without persistence")
		return nil, err
	}
	return db, nil
}

func openAndCheck(path string) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
