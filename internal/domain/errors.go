package domain

import (
	"errors"
	"fmt"
	"strings"
)

// UnavailableReason classifies why a source could not supply data
type UnavailableReason string

const (
	ReasonNotFound          UnavailableReason = "not-found"
	ReasonRateLimited       UnavailableReason = "rate-limited"
	ReasonMalformedResponse UnavailableReason = "malformed-response"
	ReasonNetworkError      UnavailableReason = "network-error"
	ReasonTimeout           UnavailableReason = "timeout"
	ReasonCooldown          UnavailableReason = "cooldown"
	ReasonUnsupported       UnavailableReason = "unsupported"
)

// SourceAttempt records one adapter's failure during resolution
type SourceAttempt struct {
	Source string            `json:"source"`
	Reason UnavailableReason `json:"reason"`
	Detail string            `json:"detail,omitempty"`
}

// UnavailableError is returned when every source for a field set failed
type UnavailableError struct {
	EntityID string          `json:"entity_id"`
	FieldSet FieldSet        `json:"field_set"`
	Attempts []SourceAttempt `json:"attempts"`
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Source+"="+string(a.Reason))
	}
	return fmt.Sprintf("%s unavailable for %s: [%s]", e.FieldSet, e.EntityID, strings.Join(parts, ", "))
}

// AllNotFound reports whether every attempt failed with not-found
func (e *UnavailableError) AllNotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Reason != ReasonNotFound && a.Reason != ReasonUnsupported {
			return false
		}
	}
	return true
}

// NormalizationReason classifies normalization failures
type NormalizationReason string

const (
	ReasonMalformedUnit   NormalizationReason = "malformed-unit"
	ReasonPeriodAmbiguous NormalizationReason = "period-ambiguous"
	ReasonMissingField    NormalizationReason = "missing-required-field"
)

// NormalizationError is returned when a raw payload cannot be normalized
type NormalizationError struct {
	Reason   NormalizationReason
	FieldSet FieldSet
	Source   string
	Detail   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization of %s from %s failed (%s): %s", e.FieldSet, e.Source, e.Reason, e.Detail)
}

// ErrInsufficientHistory is matched by InsufficientHistoryError via errors.Is
var ErrInsufficientHistory = errors.New("insufficient history")

// InsufficientHistoryError reports how many usable periods were found
type InsufficientHistoryError struct {
	Required  int
	Available int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: need %d periods, have %d", e.Required, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientHistory) match
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// NonPositiveEPSError is returned when projected EPS is zero or negative
type NonPositiveEPSError struct {
	ProjectedEPS float64
}

func (e *NonPositiveEPSError) Error() string {
	return fmt.Sprintf("projected EPS %.4f is not positive, P/E undefined", e.ProjectedEPS)
}

// ErrNoUniverse is returned when no listing universe could be obtained
var ErrNoUniverse = errors.New("no listing universe available")
