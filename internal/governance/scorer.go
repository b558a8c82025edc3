// Package governance scores governance red flags over normalized disclosure data.
package governance

import (
	"fmt"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

// Config holds rule thresholds and the per-rule severity mapping
type Config struct {
	AuditorLookback      time.Duration
	MaxAuditorChanges    int
	MaxPledgePct         float64
	MaxRelatedPartyRatio float64
	FilingDueDays        int
	FilingGraceDays      int
	Severities           map[domain.FlagKind]domain.Severity
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		AuditorLookback:      3 * 365 * 24 * time.Hour,
		MaxAuditorChanges:    1,
		MaxPledgePct:         50,
		MaxRelatedPartyRatio: 0.10,
		FilingDueDays:        45,
		FilingGraceDays:      15,
		Severities:           DefaultSeverities(),
	}
}

// DefaultSeverities returns the default rule severity mapping
func DefaultSeverities() map[domain.FlagKind]domain.Severity {
	return map[domain.FlagKind]domain.Severity{
		domain.FlagAuditorChurn:      domain.SeverityMedium,
		domain.FlagHighPledge:        domain.SeverityHigh,
		domain.FlagRelatedParty:      domain.SeverityMedium,
		domain.FlagFilingDelay:       domain.SeverityLow,
		domain.FlagRegulatoryPenalty: domain.SeverityHigh,
	}
}

// outcome is a rule result: a flag, a skip, or neither (passed)
type outcome struct {
	flag *domain.Flag
	skip *domain.InsufficientDataForRule
}

type rule struct {
	kind     domain.FlagKind
	evaluate func(s *Scorer, p *domain.GovernanceProfile) outcome
}

// rules is the fixed rule order. Rules are independent of one another.
var rules = []rule{
	{domain.FlagAuditorChurn, (*Scorer).auditorChurn},
	{domain.FlagHighPledge, (*Scorer).highPledge},
	{domain.FlagRelatedParty, (*Scorer).relatedParty},
	{domain.FlagFilingDelay, (*Scorer).filingDelay},
	{domain.FlagRegulatoryPenalty, (*Scorer).regulatoryPenalty},
}

// Scorer evaluates the governance rule set
type Scorer struct {
	cfg Config
	log zerolog.Logger
}

// NewScorer creates a scorer. Missing severities fall back to the defaults.
func NewScorer(cfg Config, log zerolog.Logger) *Scorer {
	severities := DefaultSeverities()
	for kind, severity := range cfg.Severities {
		severities[kind] = severity
	}
	cfg.Severities = severities

	return &Scorer{
		cfg: cfg,
		log: log.With().Str("component", "governance_scorer").Logger(),
	}
}

// Score evaluates every rule against profile. A nil profile skips every rule.
func (s *Scorer) Score(profile *domain.GovernanceProfile) *domain.FlagSet {
	result := &domain.FlagSet{Flags: []domain.Flag{}}

	for _, r := range rules {
		if profile == nil {
			result.Skipped = append(result.Skipped, domain.InsufficientDataForRule{
				Rule:   r.kind,
				Detail: "governance data unavailable",
			})
			continue
		}

		out := r.evaluate(s, profile)
		switch {
		case out.skip != nil:
			out.skip.Rule = r.kind
			result.Skipped = append(result.Skipped, *out.skip)
		case out.flag != nil:
			out.flag.Kind = r.kind
			out.flag.Severity = s.cfg.Severities[r.kind]
			result.Flags = append(result.Flags, *out.flag)
			if out.flag.Severity > result.Aggregate {
				result.Aggregate = out.flag.Severity
			}
		}
	}

	return result
}

func skipped(format string, args ...interface{}) outcome {
	return outcome{skip: &domain.InsufficientDataForRule{Detail: fmt.Sprintf(format, args...)}}
}

func flagged(period, format string, args ...interface{}) outcome {
	return outcome{flag: &domain.Flag{EvidencePeriod: period, Detail: fmt.Sprintf(format, args...)}}
}

func (s *Scorer) auditorChurn(p *domain.GovernanceProfile) outcome {
	if !p.AuditorsKnown {
		return skipped("auditor history not reported")
	}

	since := p.AsOf.Add(-s.cfg.AuditorLookback)
	changes := 0
	var latest time.Time
	for i, current := range p.Auditors {
		if current.AppointedOn.Before(since) || current.AppointedOn.After(p.AsOf) {
			continue
		}
		// An appointment without a disclosed change is a change only when the
		// auditor differs from the one before it
		if !current.Change {
			if i == 0 || p.Auditors[i-1].Change || current.Name == p.Auditors[i-1].Name {
				continue
			}
		}
		changes++
		latest = current.AppointedOn
	}

	if changes > s.cfg.MaxAuditorChanges {
		return flagged(domain.QuarterOf(latest).String(),
			"%d auditor changes since %s (max %d)", changes, since.Format("2006-01-02"), s.cfg.MaxAuditorChanges)
	}
	return outcome{}
}

func (s *Scorer) highPledge(p *domain.GovernanceProfile) outcome {
	if !p.PromoterPledgePct.Valid {
		return skipped("promoter pledge not reported")
	}
	if p.PromoterPledgePct.Float64 > s.cfg.MaxPledgePct {
		return flagged(domain.QuarterOf(p.AsOf).String(),
			"promoter pledge %.1f%% above %.1f%%", p.PromoterPledgePct.Float64, s.cfg.MaxPledgePct)
	}
	return outcome{}
}

func (s *Scorer) relatedParty(p *domain.GovernanceProfile) outcome {
	if !p.RelatedPartyCrore.Valid {
		return skipped("related party transactions not reported")
	}
	if !p.RevenueCrore.Valid || p.RevenueCrore.Float64 <= 0 {
		return skipped("revenue needed for related party ratio")
	}

	ratio := p.RelatedPartyCrore.Float64 / p.RevenueCrore.Float64
	if ratio > s.cfg.MaxRelatedPartyRatio {
		return flagged(domain.QuarterOf(p.AsOf).String(),
			"related party transactions %.1f%% of revenue (max %.1f%%)", ratio*100, s.cfg.MaxRelatedPartyRatio*100)
	}
	return outcome{}
}

func (s *Scorer) filingDelay(p *domain.GovernanceProfile) outcome {
	if !p.FilingsKnown {
		return skipped("filing history not reported")
	}

	allowed := s.cfg.FilingDueDays + s.cfg.FilingGraceDays
	worstDelay := 0
	var worst domain.Filing
	for _, f := range p.Filings {
		days := int(f.FiledOn.Sub(f.PeriodEnd).Hours() / 24)
		if days > worstDelay {
			worstDelay = days
			worst = f
		}
	}

	if worstDelay > allowed {
		return flagged(domain.QuarterOf(worst.PeriodEnd).String(),
			"filed %d days after period end (allowed %d)", worstDelay, allowed)
	}
	return outcome{}
}

func (s *Scorer) regulatoryPenalty(p *domain.GovernanceProfile) outcome {
	if !p.PenaltiesKnown {
		return skipped("regulatory actions not reported")
	}
	if len(p.Penalties) == 0 {
		return outcome{}
	}

	latest := p.Penalties[0]
	for _, penalty := range p.Penalties[1:] {
		if penalty.Date.After(latest.Date) {
			latest = penalty
		}
	}
	return flagged(domain.QuarterOf(latest.Date).String(),
		"%d regulatory penalties, latest by %s: %s", len(p.Penalties), latest.Authority, latest.Description)
}
