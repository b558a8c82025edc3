package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/screening"
)

type fakeScreening struct {
	mu      sync.Mutex
	report  *domain.Report
	running bool
	runs    int
	ran     chan struct{}
}

func (f *fakeScreening) Run(ctx context.Context) (*domain.Report, error) {
	f.mu.Lock()
	f.runs++
	report := f.report
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	if report == nil {
		return nil, screening.ErrNoReport
	}
	return report, nil
}

func (f *fakeScreening) Latest(ctx context.Context) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.report == nil {
		return nil, screening.ErrNoReport
	}
	return f.report, nil
}

func (f *fakeScreening) Result(ctx context.Context, entity domain.Entity) (domain.ScreeningResult, error) {
	report, err := f.Latest(ctx)
	if err != nil {
		return domain.ScreeningResult{}, err
	}
	result, ok := report.Find(entity.ID())
	if !ok {
		return domain.ScreeningResult{}, screening.ErrEntityNotScreened
	}
	return result, nil
}

func (f *fakeScreening) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakeJobs struct{}

func (fakeJobs) Jobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Name: "screening", Schedule: "0 30 16 * * MON-FRI"}}
}

type fakeCounter struct{}

func (fakeCounter) CountByFieldSet(ctx context.Context) (map[domain.FieldSet]int64, error) {
	return map[domain.FieldSet]int64{domain.FieldSetQuarterly: 3}, nil
}

func sampleReport() *domain.Report {
	return &domain.Report{
		RunID:      "run-1",
		StartedAt:  time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 10, 16, 9, 5, 0, 0, time.UTC),
		Universe:   2,
		Qualified:  1,
		Excluded:   1,
		Results: []domain.ScreeningResult{
			{
				Entity: domain.Entity{Exchange: "NSE", Symbol: "ABC"},
				State:  domain.StateQualified,
				Valuation: &domain.Valuation{
					ForwardPE: 22.7,
				},
			},
			{
				Entity: domain.Entity{Exchange: "NSE", Symbol: "XYZ"},
				State:  domain.StateExcluded,
				Exclusion: &domain.Exclusion{
					Stage: domain.StateProjected,
					Kind:  domain.ExclusionInsufficientHistory,
				},
			},
		},
	}
}

func newTestServer(svc ScreeningService) *Server {
	return New(Config{
		Log:        zerolog.Nop(),
		Port:       0,
		DevMode:    true,
		Screening:  svc,
		RunTimeout: time.Minute,
		Cache:      fakeCounter{},
		Jobs:       fakeJobs{},
	})
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeScreening{})
	rec := do(t, s, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleLatest(t *testing.T) {
	t.Run("no report", func(t *testing.T) {
		s := newTestServer(&fakeScreening{})
		rec := do(t, s, http.MethodGet, "/api/screening/latest")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "error", body["status"])
	})

	t.Run("full report", func(t *testing.T) {
		s := newTestServer(&fakeScreening{report: sampleReport()})
		rec := do(t, s, http.MethodGet, "/api/screening/latest")

		require.Equal(t, http.StatusOK, rec.Code)
		var report domain.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "run-1", report.RunID)
		assert.Len(t, report.Results, 2)
	})

	t.Run("qualified only", func(t *testing.T) {
		svc := &fakeScreening{report: sampleReport()}
		s := newTestServer(svc)
		rec := do(t, s, http.MethodGet, "/api/screening/latest?qualified=true")

		require.Equal(t, http.StatusOK, rec.Code)
		var report domain.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		require.Len(t, report.Results, 1)
		assert.Equal(t, "ABC", report.Results[0].Entity.Symbol)
		assert.Equal(t, 1, report.Excluded)

		// the stored report is left untouched
		assert.Len(t, svc.report.Results, 2)
	})
}

func TestHandleResult(t *testing.T) {
	s := newTestServer(&fakeScreening{report: sampleReport()})

	rec := do(t, s, http.MethodGet, "/api/screening/results/nse/xyz")
	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.ScreeningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.StateExcluded, result.State)
	require.NotNil(t, result.Exclusion)
	assert.Equal(t, domain.ExclusionInsufficientHistory, result.Exclusion.Kind)

	rec = do(t, s, http.MethodGet, "/api/screening/results/NSE/MISSING")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	empty := newTestServer(&fakeScreening{})
	rec = do(t, empty, http.MethodGet, "/api/screening/results/NSE/ABC")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRun(t *testing.T) {
	t.Run("starts a run", func(t *testing.T) {
		svc := &fakeScreening{report: sampleReport(), ran: make(chan struct{}, 1)}
		s := newTestServer(svc)

		rec := do(t, s, http.MethodPost, "/api/screening/run")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "started")

		select {
		case <-svc.ran:
		case <-time.After(2 * time.Second):
			t.Fatal("run was not started")
		}
	})

	t.Run("rejects while running", func(t *testing.T) {
		svc := &fakeScreening{running: true}
		s := newTestServer(svc)

		rec := do(t, s, http.MethodPost, "/api/screening/run")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, 0, svc.runs)
	})
}

func TestHandleSystemStats(t *testing.T) {
	s := newTestServer(&fakeScreening{report: sampleReport()})
	rec := do(t, s, http.MethodGet, "/api/system/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.False(t, stats.Cache.Persistent)
	assert.Nil(t, stats.Cache.Database)
	assert.Equal(t, int64(3), stats.Cache.Entries[domain.FieldSetQuarterly])
	require.Len(t, stats.Jobs, 1)
	assert.Equal(t, "screening", stats.Jobs[0].Name)
	assert.Equal(t, "run-1", stats.Screening.LastRunID)
	assert.Equal(t, 1, stats.Screening.Qualified)
	assert.False(t, stats.Screening.Running)
}

func TestHandleSystemStats_NilDependencies(t *testing.T) {
	h := NewSystemHandlers(nil, nil, nil, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.HandleSystemStats(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Empty(t, stats.Jobs)
	assert.Empty(t, stats.Screening.LastRunID)
}
