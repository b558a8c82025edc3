package screening

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

var (
	// ErrRunInProgress is returned when a run is requested while one is active
	ErrRunInProgress = errors.New("screening run already in progress")
	// ErrNoReport is returned when no run has completed yet
	ErrNoReport = errors.New("no screening report available")
	// ErrEntityNotScreened is returned when the latest report has no result for an entity
	ErrEntityNotScreened = errors.New("entity not in latest report")
)

// DefaultReportsKept is how many reports are retained in the database
const DefaultReportsKept = 30

// Service runs the pipeline one run at a time and keeps the latest report
type Service struct {
	pipeline *Pipeline
	reports  *ReportRepository
	log      zerolog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	latest  *domain.Report
}

// NewService creates a screening service. reports may be nil, in which case
// only the latest report of this process is kept.
func NewService(pipeline *Pipeline, reports *ReportRepository, log zerolog.Logger) *Service {
	return &Service{
		pipeline: pipeline,
		reports:  reports,
		log:      log.With().Str("component", "screening_service").Logger(),
	}
}

// Running reports whether a run is active
func (s *Service) Running() bool {
	return s.running.Load()
}

// Run executes a screening run and stores its report
func (s *Service) Run(ctx context.Context) (*domain.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	report, err := s.pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	if s.reports != nil {
		// The report is still served from memory if it cannot be stored
		if err := s.reports.Save(context.WithoutCancel(ctx), report); err != nil {
			s.log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to store screening report")
		} else if pruned, err := s.reports.Prune(context.WithoutCancel(ctx), DefaultReportsKept); err != nil {
			s.log.Warn().Err(err).Msg("Failed to prune screening reports")
		} else if pruned > 0 {
			s.log.Debug().Int64("pruned", pruned).Msg("Pruned old screening reports")
		}
	}

	return report, nil
}

// Latest returns the most recent report, loading it from the database after
// a restart
func (s *Service) Latest(ctx context.Context) (*domain.Report, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}
	if s.reports == nil {
		return nil, ErrNoReport
	}

	stored, err := s.reports.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNoReport
	}

	s.mu.Lock()
	if s.latest == nil {
		s.latest = stored
	}
	latest = s.latest
	s.mu.Unlock()
	return latest, nil
}

// Result returns an entity's result from the latest report
func (s *Service) Result(ctx context.Context, entity domain.Entity) (domain.ScreeningResult, error) {
	report, err := s.Latest(ctx)
	if err != nil {
		return domain.ScreeningResult{}, err
	}
	result, ok := report.Find(entity.ID())
	if !ok {
		return domain.ScreeningResult{}, ErrEntityNotScreened
	}
	return result, nil
}
