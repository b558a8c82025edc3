package domain

import (
	"fmt"
	"strings"
	"time"
)

// Annotation marks a noteworthy condition on a projection
type Annotation string

const (
	AnnotationGrowthClamped     Annotation = "growth-clamped"
	AnnotationReducedConfidence Annotation = "reduced-confidence"
	AnnotationEPSDerived        Annotation = "eps-derived"
)

// GrowthRate is the period-over-period change between two present periods
type GrowthRate struct {
	From          Period  `json:"from"`
	To            Period  `json:"to"`
	Rate          float64 `json:"rate"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// GrowthProjection is derived from a history on every run and never persisted
type GrowthProjection struct {
	BasePeriod    Period       `json:"base_period"`
	RevenueGrowth []GrowthRate `json:"revenue_growth"`
	PATGrowth     []GrowthRate `json:"pat_growth"`
	RevenueTrend  float64      `json:"revenue_trend"`
	PATTrend      float64      `json:"pat_trend"`
	AppliedGrowth float64      `json:"applied_growth"`
	LastEPS       float64      `json:"last_eps"`
	ProjectedEPS  float64      `json:"projected_eps"`
	Annotations   []Annotation `json:"annotations,omitempty"`
}

// Has reports whether the projection carries annotation a
func (g *GrowthProjection) Has(a Annotation) bool {
	for _, existing := range g.Annotations {
		if existing == a {
			return true
		}
	}
	return false
}

// Valuation is the forward valuation outcome for one entity
type Valuation struct {
	Price          float64  `json:"price"`
	ProjectedEPS   float64  `json:"projected_eps"`
	EPSBasis       string   `json:"eps_basis"`
	ForwardPE      float64  `json:"forward_pe"`
	MarketCapCrore float64  `json:"market_cap_crore"`
	Passed         bool     `json:"passed"`
	FailedChecks   []string `json:"failed_checks,omitempty"`
}

// Severity orders governance flags; the aggregate is the maximum
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = []string{"none", "low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityNone || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(name, n) {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FlagKind names a governance rule
type FlagKind string

const (
	FlagAuditorChurn      FlagKind = "auditor-churn"
	FlagHighPledge        FlagKind = "high-pledge"
	FlagRelatedParty      FlagKind = "related-party"
	FlagFilingDelay       FlagKind = "filing-delay"
	FlagRegulatoryPenalty FlagKind = "regulatory-penalty"
)

// Flag is one triggered governance rule
type Flag struct {
	Kind           FlagKind `json:"kind"`
	Severity       Severity `json:"severity"`
	EvidencePeriod string   `json:"evidence_period,omitempty"`
	Detail         string   `json:"detail,omitempty"`
}

// InsufficientDataForRule records a rule skipped for lack of input
type InsufficientDataForRule struct {
	Rule   FlagKind `json:"rule"`
	Detail string   `json:"detail"`
}

// FlagSet is the governance scorer output
type FlagSet struct {
	Flags     []Flag                    `json:"flags"`
	Skipped   []InsufficientDataForRule `json:"skipped,omitempty"`
	Aggregate Severity                  `json:"aggregate"`
}

// Has reports whether a flag of kind k was raised
func (f *FlagSet) Has(k FlagKind) bool {
	for _, flag := range f.Flags {
		if flag.Kind == k {
			return true
		}
	}
	return false
}

// State is a step of the per-entity screening state machine
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateNormalized State = "normalized"
	StateProjected  State = "projected"
	StateEvaluated  State = "evaluated"
	StateQualified  State = "qualified"
	StateExcluded   State = "excluded"
)

// ExclusionKind classifies why an entity was excluded
type ExclusionKind string

const (
	ExclusionUnavailable         ExclusionKind = "unavailable"
	ExclusionNormalization       ExclusionKind = "normalization-error"
	ExclusionInsufficientHistory ExclusionKind = "insufficient-history"
	ExclusionNonPositiveEPS      ExclusionKind = "non-positive-eps"
	ExclusionPredicate           ExclusionKind = "predicate-failed"
	ExclusionGovernance          ExclusionKind = "governance"
	ExclusionCanceled            ExclusionKind = "canceled"
)

// Exclusion records the stage and cause of an entity leaving the pipeline
type Exclusion struct {
	Stage    State           `json:"stage"`
	Kind     ExclusionKind   `json:"kind"`
	Detail   string          `json:"detail"`
	Attempts []SourceAttempt `json:"attempts,omitempty"`
}

// ScreeningResult is the outcome for one entity within a run
type ScreeningResult struct {
	Entity     Entity              `json:"entity"`
	State      State               `json:"state"`
	Record     *FinancialRecord    `json:"record,omitempty"`
	Projection *GrowthProjection   `json:"projection,omitempty"`
	Valuation  *Valuation          `json:"valuation,omitempty"`
	Flags      *FlagSet            `json:"flags,omitempty"`
	Rating     *RatingSummary      `json:"rating,omitempty"`
	Exclusion  *Exclusion          `json:"exclusion,omitempty"`
	Sources    map[FieldSet]string `json:"sources,omitempty"`
	Notes      []string            `json:"notes,omitempty"`
}

// Report is the aggregated output of one screening run
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Universe   int               `json:"universe"`
	Qualified  int               `json:"qualified"`
	Excluded   int               `json:"excluded"`
	Results    []ScreeningResult `json:"results"`
}

// QualifiedResults returns the qualified results in report order
func (r *Report) QualifiedResults() []ScreeningResult {
	out := make([]ScreeningResult, 0, r.Qualified)
	for _, res := range r.Results {
		if res.State == StateQualified {
			out = append(out, res)
		}
	}
	return out
}

// Find returns the result for an entity id
func (r *Report) Find(entityID string) (ScreeningResult, bool) {
	for _, res := range r.Results {
		if res.Entity.ID() == entityID {
			return res, true
		}
	}
	return ScreeningResult{}, false
}
