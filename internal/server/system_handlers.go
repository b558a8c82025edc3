package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/scheduler"
)

// CacheCounter counts cached entries per field set
type CacheCounter interface {
	CountByFieldSet(ctx context.Context) (map[domain.FieldSet]int64, error)
}

// SystemStatsResponse is the system stats payload
type SystemStatsResponse struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	CPUPercent    float64              `json:"cpu_percent"`
	RAMPercent    float64              `json:"ram_percent"`
	Cache         CacheStats           `json:"cache"`
	Screening     ScreeningStats       `json:"screening"`
	Jobs          []scheduler.JobInfo `json:"jobs"`
}

// CacheStats describes the cache database
type CacheStats struct {
	Persistent bool                     `json:"persistent"`
	Database   *database.Stats          `json:"database,omitempty"`
	Entries    map[domain.FieldSet]int64 `json:"entries,omitempty"`
}

// ScreeningStats summarizes the latest run
type ScreeningStats struct {
	Running    bool      `json:"running"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Universe   int       `json:"universe"`
	Qualified  int       `json:"qualified"`
	Excluded   int       `json:"excluded"`
}

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	cacheDB     *database.DB
	cache       CacheCounter
	jobs        JobLister
	screening   ScreeningService
}

// NewSystemHandlers creates a new system handlers instance. cacheDB, cache
// and jobs may be nil.
func NewSystemHandlers(cacheDB *database.DB, cache CacheCounter, jobs JobLister, screening ScreeningService, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		cacheDB:     cacheDB,
		cache:       cache,
		jobs:        jobs,
		screening:   screening,
	}
}

// HandleSystemStats returns resource usage, cache and run statistics
// GET /api/system/stats
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatsResponse{
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Cache:         CacheStats{Persistent: h.cacheDB != nil},
		Jobs:          []scheduler.JobInfo{},
	}

	if h.cacheDB != nil {
		stats, err := h.cacheDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get cache database stats")
		}
		response.Cache.Database = stats
	}
	if h.cache != nil {
		counts, err := h.cache.CountByFieldSet(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cache entries")
		}
		response.Cache.Entries = counts
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}

	if h.screening != nil {
		response.Screening.Running = h.screening.Running()
		if report, err := h.screening.Latest(r.Context()); err == nil {
			response.Screening.LastRunID = report.RunID
			response.Screening.FinishedAt = report.FinishedAt
			response.Screening.Universe = report.Universe
			response.Screening.Qualified = report.Qualified
			response.Screening.Excluded = report.Excluded
		}
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
