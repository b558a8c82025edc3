package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/screening"
)

// ScreeningService runs screenings and serves their reports
type ScreeningService interface {
	Run(ctx context.Context) (*domain.Report, error)
	Latest(ctx context.Context) (*domain.Report, error)
	Result(ctx context.Context, entity domain.Entity) (domain.ScreeningResult, error)
	Running() bool
}

// ScreeningHandlers serves screening reports and manual runs
type ScreeningHandlers struct {
	service    ScreeningService
	runTimeout time.Duration
	log        zerolog.Logger
}

// NewScreeningHandlers creates screening handlers
func NewScreeningHandlers(service ScreeningService, runTimeout time.Duration, log zerolog.Logger) *ScreeningHandlers {
	if runTimeout <= 0 {
		runTimeout = screening.DefaultRunTimeout
	}
	return &ScreeningHandlers{
		service:    service,
		runTimeout: runTimeout,
		log:        log.With().Str("component", "screening_handlers").Logger(),
	}
}

// HandleLatest returns the latest report
// GET /api/screening/latest[?qualified=true]
func (h *ScreeningHandlers) HandleLatest(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Latest(r.Context())
	if errors.Is(err, screening.ErrNoReport) {
		writeError(w, http.StatusNotFound, err.Error(), h.log)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest report")
		writeError(w, http.StatusInternalServerError, "failed to load latest report", h.log)
		return
	}

	if qualifiedOnly, _ := strconv.ParseBool(r.URL.Query().Get("qualified")); qualifiedOnly {
		filtered := *report
		filtered.Results = report.QualifiedResults()
		report = &filtered
	}

	writeJSON(w, http.StatusOK, report, h.log)
}

// HandleResult returns one entity's result from the latest report
// GET /api/screening/results/{exchange}/{symbol}
func (h *ScreeningHandlers) HandleResult(w http.ResponseWriter, r *http.Request) {
	entity, ok := domain.ParseEntityID(chi.URLParam(r, "exchange") + ":" + chi.URLParam(r, "symbol"))
	if !ok {
		writeError(w, http.StatusBadRequest, "exchange and symbol are required", h.log)
		return
	}

	result, err := h.service.Result(r.Context(), entity)
	switch {
	case errors.Is(err, screening.ErrNoReport), errors.Is(err, screening.ErrEntityNotScreened):
		writeError(w, http.StatusNotFound, err.Error(), h.log)
		return
	case err != nil:
		h.log.Error().Err(err).Str("entity", entity.ID()).Msg("Failed to load result")
		writeError(w, http.StatusInternalServerError, "failed to load result", h.log)
		return
	}

	writeJSON(w, http.StatusOK, result, h.log)
}

// HandleRun starts a screening run in the background
// POST /api/screening/run
func (h *ScreeningHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if h.service.Running() {
		writeError(w, http.StatusConflict, screening.ErrRunInProgress.Error(), h.log)
		return
	}

	h.log.Info().Msg("Manual screening run triggered")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
		defer cancel()

		report, err := h.service.Run(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Manual screening run failed")
			return
		}
		h.log.Info().
			Str("run_id", report.RunID).
			Int("qualified", report.Qualified).
			Msg("Manual screening run completed")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Screening run started",
	}, h.log)
}
