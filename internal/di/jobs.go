// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/screening"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and schedules them.
// Returns JobInstances for manual triggering.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	var checkpointer clientdata.Checkpointer
	if container.CacheDB != nil {
		checkpointer = container.CacheDB
	}

	instances := &JobInstances{
		Screening:    screening.NewJob(container.ScreeningService, time.Duration(cfg.Policy.Pipeline.RunTimeout), log),
		CacheCleanup: clientdata.NewCleanupJob(container.CacheStore, checkpointer, log),
	}

	container.Scheduler = scheduler.New(log)

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.Screening, instances.Screening},
		{cfg.Schedules.CacheCleanup, instances.CacheCleanup},
	}
	for _, s := range schedules {
		if s.schedule == "" {
			log.Info().Str("job", s.job.Name()).Msg("Job has no schedule, manual runs only")
			continue
		}
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, err
		}
	}

	return instances, nil
}
