package domain

import (
	"time"

	"github.com/guregu/null/v6"
)

// RupeesPerCrore converts raw rupee amounts to crore
const RupeesPerCrore = 1e7

// FinancialRecord holds one aligned reporting period. Monetary values are in
// crore, EPS and price in rupees, shares as a raw count. A Missing record is a
// placeholder for a gap in the series.
type FinancialRecord struct {
	Period        Period     `json:"period"`
	EndDate       time.Time  `json:"end_date"`
	Revenue       null.Float `json:"revenue"`
	EBITDA        null.Float `json:"ebitda"`
	PAT           null.Float `json:"pat"`
	EPS           null.Float `json:"eps"`
	Shares        null.Float `json:"shares"`
	Price         null.Float `json:"price"`
	Missing       bool       `json:"missing,omitempty"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
	Notes         []string   `json:"notes,omitempty"`
}

// FinancialHistory is a normalized, gap-filled series ordered oldest first
type FinancialHistory struct {
	Entity      Entity            `json:"entity"`
	Kind        PeriodKind        `json:"kind"`
	Currency    string            `json:"currency"`
	Source      string            `json:"source"`
	Records     []FinancialRecord `json:"records"`
	Adjustments []CorporateAction `json:"adjustments,omitempty"`
}

// Present returns the non-missing records in order
func (h *FinancialHistory) Present() []FinancialRecord {
	out := make([]FinancialRecord, 0, len(h.Records))
	for _, r := range h.Records {
		if !r.Missing {
			out = append(out, r)
		}
	}
	return out
}

// Latest returns the most recent non-missing record
func (h *FinancialHistory) Latest() (FinancialRecord, bool) {
	for i := len(h.Records) - 1; i >= 0; i-- {
		if !h.Records[i].Missing {
			return h.Records[i], true
		}
	}
	return FinancialRecord{}, false
}

// Quote is a normalized current market quote
type Quote struct {
	Price  float64   `json:"price"`
	Shares float64   `json:"shares"`
	AsOf   time.Time `json:"as_of"`
	Source string    `json:"source"`
}

// MarketCapCrore returns price times shares outstanding, in crore
func (q Quote) MarketCapCrore() float64 {
	return q.Price * q.Shares / RupeesPerCrore
}

// CorporateActionKind identifies share-count altering events
type CorporateActionKind string

const (
	ActionSplit CorporateActionKind = "split"
	ActionBonus CorporateActionKind = "bonus"
)

// CorporateAction is a split or bonus issue. Factor is the multiplier applied
// to the share count on the effective date (2.0 for a 1:1 bonus or a 2-for-1 split).
type CorporateAction struct {
	Kind   CorporateActionKind `json:"kind"`
	Date   time.Time           `json:"date"`
	Factor float64             `json:"factor"`
	Ratio  string              `json:"ratio"`
}

// AuditorAppointment records when an auditor took office. Change marks a
// disclosed change event, which counts as a change on its own.
type AuditorAppointment struct {
	Name        string    `json:"name"`
	AppointedOn time.Time `json:"appointed_on"`
	Change      bool      `json:"change,omitempty"`
}

// Filing is a periodic disclosure with its due and actual filing dates
type Filing struct {
	PeriodEnd time.Time `json:"period_end"`
	FiledOn   time.Time `json:"filed_on"`
}

// Penalty is a regulatory action recorded against the entity
type Penalty struct {
	Date        time.Time `json:"date"`
	Authority   string    `json:"authority"`
	Description string    `json:"description"`
}

// GovernanceProfile is the normalized governance data for an entity. The
// Known flags separate "reported none" from "not reported".
type GovernanceProfile struct {
	AsOf              time.Time            `json:"as_of"`
	Auditors          []AuditorAppointment `json:"auditors,omitempty"`
	AuditorsKnown     bool                 `json:"auditors_known"`
	PromoterPledgePct null.Float           `json:"promoter_pledge_pct"`
	RelatedPartyCrore null.Float           `json:"related_party_crore"`
	RevenueCrore      null.Float           `json:"revenue_crore"`
	Filings           []Filing             `json:"filings,omitempty"`
	FilingsKnown      bool                 `json:"filings_known"`
	Penalties         []Penalty            `json:"penalties,omitempty"`
	PenaltiesKnown    bool                 `json:"penalties_known"`
	Source            string               `json:"source"`
}
