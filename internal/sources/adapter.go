// Package sources defines the source adapter contract and the machinery that
// sits between the cache and the upstream clients: pacing, timeouts,
// per-upstream concurrency caps and ordered fallback.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aristath/screener/internal/domain"
)

// Adapter fetches one or more field sets for an entity from a single upstream.
// Failures are reported as *Unavailable so the resolver can fall back.
type Adapter interface {
	Name() string
	Supports(fs domain.FieldSet) bool
	Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error)
}

// Unavailable is an adapter failure with a classified reason
type Unavailable struct {
	Source string
	Reason domain.UnavailableReason
	Err    error
}

// NewUnavailable creates an Unavailable error
func NewUnavailable(source string, reason domain.UnavailableReason, err error) *Unavailable {
	return &Unavailable{Source: source, Reason: reason, Err: err}
}

func (e *Unavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("%s unavailable: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *Unavailable) Unwrap() error {
	return e.Err
}

// Attempt converts the failure into a resolver attempt record
func (e *Unavailable) Attempt() domain.SourceAttempt {
	attempt := domain.SourceAttempt{Source: e.Source, Reason: e.Reason}
	if e.Err != nil {
		attempt.Detail = e.Err.Error()
	}
	return attempt
}

// Classify turns an arbitrary adapter error into an *Unavailable
func Classify(source string, err error) *Unavailable {
	var unavailable *Unavailable
	if errors.As(err, &unavailable) {
		if unavailable.Source == "" {
			unavailable.Source = source
		}
		return unavailable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewUnavailable(source, domain.ReasonTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewUnavailable(source, domain.ReasonTimeout, err)
	}

	return NewUnavailable(source, domain.ReasonNetworkError, err)
}

// ReasonForStatus maps an HTTP status code to an unavailability reason
func ReasonForStatus(status int) domain.UnavailableReason {
	switch {
	case status == 404 || status == 410:
		return domain.ReasonNotFound
	case status == 429:
		return domain.ReasonRateLimited
	case status == 408 || status == 504:
		return domain.ReasonTimeout
	case status >= 500:
		return domain.ReasonNetworkError
	default:
		return domain.ReasonMalformedResponse
	}
}
