package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

// Resolver tries an ordered chain of adapters per field set and returns the
// first successful payload. It never merges partial data across sources.
type Resolver struct {
	mu     sync.RWMutex
	chains map[domain.FieldSet][]Adapter
	log    zerolog.Logger
}

// NewResolver creates an empty resolver
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{
		chains: make(map[domain.FieldSet][]Adapter),
		log:    log.With().Str("component", "source_resolver").Logger(),
	}
}

// Register appends adapters to the chain for fs, in priority order
func (r *Resolver) Register(fs domain.FieldSet, adapters ...Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[fs] = append(r.chains[fs], adapters...)
}

// Chain returns the adapter names registered for fs
func (r *Resolver) Chain(fs domain.FieldSet) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chains[fs]))
	for _, a := range r.chains[fs] {
		names = append(names, a.Name())
	}
	return names
}

// Resolve fetches fs for entity. When every adapter fails the error is a
// *domain.UnavailableError listing each attempt in order.
func (r *Resolver) Resolve(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	r.mu.RLock()
	chain := r.chains[fs]
	r.mu.RUnlock()

	failure := &domain.UnavailableError{EntityID: entity.ID(), FieldSet: fs}
	if len(chain) == 0 {
		failure.Attempts = append(failure.Attempts, domain.SourceAttempt{
			Source: "none",
			Reason: domain.ReasonUnsupported,
			Detail: "no adapters registered",
		})
		return nil, failure
	}

	for _, adapter := range chain {
		if err := ctx.Err(); err != nil {
			failure.Attempts = append(failure.Attempts, NewUnavailable(adapter.Name(), domain.ReasonTimeout, err).Attempt())
			continue
		}

		payload, err := adapter.Fetch(ctx, entity, fs)
		if err == nil && payload != nil {
			if len(failure.Attempts) > 0 {
				r.log.Info().
					Str("entity", entity.ID()).
					Str("field_set", string(fs)).
					Str("source", payload.Source).
					Int("failed_before", len(failure.Attempts)).
					Msg("Resolved via fallback source")
			}
			return payload, nil
		}
		if err == nil {
			err = NewUnavailable(adapter.Name(), domain.ReasonMalformedResponse, fmt.Errorf("empty payload"))
		}

		unavailable := Classify(adapter.Name(), err)
		failure.Attempts = append(failure.Attempts, unavailable.Attempt())
	}

	r.log.Warn().
		Str("entity", entity.ID()).
		Str("field_set", string(fs)).
		Int("attempts", len(failure.Attempts)).
		Msg("All sources unavailable")

	return nil, failure
}

// IsUnavailable reports whether err is a resolver-level unavailability
func IsUnavailable(err error) (*domain.UnavailableError, bool) {
	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable, true
	}
	return nil, false
}
