package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Checkpointer truncates a database's write-ahead log
type Checkpointer interface {
	Name() string
	WALCheckpoint(mode string) error
}

// CleanupJob removes cache entries that have outlived their TTL.
// Stale rows are never served, this only reclaims space.
type CleanupJob struct {
	store *Store
	db    Checkpointer
	log   zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job. db may be nil when the
// store runs without persistence.
func NewCleanupJob(store *Store, db Checkpointer, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store: store,
		db:    db,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results, err := j.store.Purge(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge stale cache entries")
		return err
	}

	var totalDeleted int64
	for fs, count := range results {
		if count > 0 {
			j.log.Info().
				Str("field_set", string(fs)).
				Int64("deleted", count).
				Msg("Cleaned up stale cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Cache cleanup completed")

		// Deleted pages stay in the WAL until a checkpoint moves them back
		if j.db != nil {
			if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("Failed to checkpoint WAL after cleanup")
			}
		}
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
