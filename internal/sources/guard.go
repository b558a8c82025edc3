package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum spacing between requests to one adapter
const DefaultMinInterval = time.Second

// DefaultTimeout bounds a single adapter call
const DefaultTimeout = 30 * time.Second

// GuardConfig configures pacing and timeout for one adapter
type GuardConfig struct {
	MinInterval time.Duration
	Timeout     time.Duration
}

// Guard wraps an adapter with a rate limiter, an optional shared per-upstream
// semaphore and a per-call timeout. It is itself an Adapter.
type Guard struct {
	adapter Adapter
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	timeout time.Duration
	log     zerolog.Logger
}

// NewGuard wraps adapter. sem may be nil for no upstream cap.
func NewGuard(adapter Adapter, cfg GuardConfig, sem *semaphore.Weighted, log zerolog.Logger) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Guard{
		adapter: adapter,
		limiter: rate.NewLimiter(limit, 1),
		sem:     sem,
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "source_guard").Str("source", adapter.Name()).Logger(),
	}
}

// Name returns the wrapped adapter's name
func (g *Guard) Name() string {
	return g.adapter.Name()
}

// Supports delegates to the wrapped adapter
func (g *Guard) Supports(fs domain.FieldSet) bool {
	return g.adapter.Supports(fs)
}

// Fetch paces, caps and times out a call to the wrapped adapter
func (g *Guard) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	name := g.adapter.Name()
	if !g.adapter.Supports(fs) {
		return nil, NewUnavailable(name, domain.ReasonUnsupported, fmt.Errorf("field set %s not supported", fs))
	}

	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, NewUnavailable(name, domain.ReasonTimeout, err)
		}
		defer g.sem.Release(1)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, NewUnavailable(name, domain.ReasonTimeout, fmt.Errorf("rate limiter wait: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	payload, err := g.adapter.Fetch(callCtx, entity, fs)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewUnavailable(name, domain.ReasonTimeout, fmt.Errorf("no response within %s", g.timeout))
		}
		unavailable := Classify(name, err)
		g.log.Debug().
			Str("entity", entity.ID()).
			Str("field_set", string(fs)).
			Str("reason", string(unavailable.Reason)).
			Dur("duration", time.Since(start)).
			Msg("Source fetch failed")
		return nil, unavailable
	}
	if payload == nil {
		return nil, NewUnavailable(name, domain.ReasonMalformedResponse, fmt.Errorf("empty payload"))
	}

	if payload.Source == "" {
		payload.Source = name
	}
	payload.EntityID = entity.ID()
	payload.FieldSet = fs

	g.log.Debug().
		Str("entity", entity.ID()).
		Str("field_set", string(fs)).
		Dur("duration", time.Since(start)).
		Msg("Source fetch succeeded")

	return payload, nil
}

// Upstreams hands out one shared semaphore per upstream host so adapters
// hitting the same service respect a global concurrency cap.
type Upstreams struct {
	mu    sync.Mutex
	limit int64
	sems  map[string]*semaphore.Weighted
}

// NewUpstreams creates a registry with the given per-upstream cap (minimum 1)
func NewUpstreams(limit int) *Upstreams {
	if limit < 1 {
		limit = 1
	}
	return &Upstreams{limit: int64(limit), sems: make(map[string]*semaphore.Weighted)}
}

// For returns the semaphore for an upstream host
func (u *Upstreams) For(host string) *semaphore.Weighted {
	u.mu.Lock()
	defer u.mu.Unlock()
	sem, ok := u.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(u.limit)
		u.sems[host] = sem
	}
	return sem
}
