package clientdata

import (
	"time"

	"github.com/aristath/screener/internal/domain"
)

// Default TTLs per field set. An entry is fresh while now - fetched_at < TTL.
const (
	TTLQuarterly    = 48 * time.Hour      // 2 days - quarterly results change only with filings
	TTLPrice        = 15 * time.Minute    // 15 minutes - quotes drive the market-cap check
	TTLActions      = 7 * 24 * time.Hour  // 7 days - splits and bonuses are announced well ahead
	TTLGovernance   = 7 * 24 * time.Hour  // 7 days - shareholding and auditor disclosures
	TTLCreditRating = 30 * 24 * time.Hour // 30 days - rating summaries are expensive to produce
	TTLUniverse     = 24 * time.Hour      // 1 day - listing universe
)

// TTLPolicy maps field sets to their freshness window
type TTLPolicy map[domain.FieldSet]time.Duration

// DefaultTTLs returns the default policy
func DefaultTTLs() TTLPolicy {
	return TTLPolicy{
		domain.FieldSetQuarterly:    TTLQuarterly,
		domain.FieldSetPrice:        TTLPrice,
		domain.FieldSetActions:      TTLActions,
		domain.FieldSetGovernance:   TTLGovernance,
		domain.FieldSetCreditRating: TTLCreditRating,
		domain.FieldSetUniverse:     TTLUniverse,
	}
}

// For returns the TTL of fs, falling back to the default when unset
func (p TTLPolicy) For(fs domain.FieldSet) time.Duration {
	if ttl, ok := p[fs]; ok && ttl > 0 {
		return ttl
	}
	if ttl, ok := DefaultTTLs()[fs]; ok {
		return ttl
	}
	return TTLPrice
}

// Merge returns a copy of p with the positive overrides applied
func (p TTLPolicy) Merge(overrides TTLPolicy) TTLPolicy {
	out := make(TTLPolicy, len(p)+len(overrides))
	for fs, ttl := range p {
		out[fs] = ttl
	}
	for fs, ttl := range overrides {
		if ttl > 0 {
			out[fs] = ttl
		}
	}
	return out
}
