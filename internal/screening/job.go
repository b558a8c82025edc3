package screening

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRunTimeout bounds a scheduled run
const DefaultRunTimeout = 4 * time.Hour

// Job runs the screening service on a schedule
type Job struct {
	service *Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewJob creates the scheduled screening job
func NewJob(service *Service, timeout time.Duration, log zerolog.Logger) *Job {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Job{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "screening").Logger(),
	}
}

// Run executes one screening run. A run already in progress is not an error.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.service.Run(ctx)
	if errors.Is(err, ErrRunInProgress) {
		j.log.Info().Msg("Screening run already in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", report.RunID).
		Int("qualified", report.Qualified).
		Int("excluded", report.Excluded).
		Msg("Scheduled screening completed")
	return nil
}

// Name returns the job name for scheduling and logging
func (j *Job) Name() string {
	return "screening"
}
