package domain

import "time"

// Raw value keys used in RawPeriod.Values
const (
	ValueRevenue = "revenue"
	ValueEBITDA  = "ebitda"
	ValuePAT     = "pat"
	ValueEPS     = "eps"
	ValueShares  = "shares"
	ValuePrice   = "price"
)

// RawPayload is the untouched output of a source adapter. It is what the cache
// persists; normalization is re-applied on every read.
type RawPayload struct {
	Source   string   `msgpack:"source" json:"source"`
	EntityID string   `msgpack:"entity_id" json:"entity_id"`
	FieldSet FieldSet `msgpack:"field_set" json:"field_set"`

	// Unit is the monetary unit of Periods values ("crore", "lakh", "million", "rupee", ...)
	Unit     string `msgpack:"unit" json:"unit,omitempty"`
	Currency string `msgpack:"currency" json:"currency,omitempty"`
	// FiscalYearStartMonth anchors "Q1 FY27"-style labels; 0 means April
	FiscalYearStartMonth int        `msgpack:"fy_start" json:"fiscal_year_start_month,omitempty"`
	PeriodKind           PeriodKind `msgpack:"period_kind" json:"period_kind,omitempty"`

	Periods    []RawPeriod    `msgpack:"periods" json:"periods,omitempty"`
	Quote      *RawQuote      `msgpack:"quote" json:"quote,omitempty"`
	Actions    []RawAction    `msgpack:"actions" json:"actions,omitempty"`
	Governance *RawGovernance `msgpack:"governance" json:"governance,omitempty"`
	Document   *RawDocument   `msgpack:"document" json:"document,omitempty"`
	Rating     *RatingSummary `msgpack:"rating" json:"rating,omitempty"`
	Listings   []RawListing   `msgpack:"listings" json:"listings,omitempty"`
}

// RawPeriod is one reported period as the upstream labelled it. Values hold
// the textual numbers exactly as received.
type RawPeriod struct {
	Label   string            `msgpack:"label" json:"label"`
	EndDate string            `msgpack:"end_date" json:"end_date,omitempty"`
	Values  map[string]string `msgpack:"values" json:"values"`
}

// RawQuote is an upstream price quote
type RawQuote struct {
	Price  float64   `msgpack:"price" json:"price"`
	Shares float64   `msgpack:"shares" json:"shares"`
	AsOf   time.Time `msgpack:"as_of" json:"as_of"`
}

// RawAction is an upstream split or bonus record. Ratio is "new/old" for
// splits ("2/1") and "bonus:held" for bonus issues ("1:1").
type RawAction struct {
	Kind  string `msgpack:"kind" json:"kind"`
	Date  string `msgpack:"date" json:"date"`
	Ratio string `msgpack:"ratio" json:"ratio"`
}

// RawGovernance is upstream governance disclosure data
type RawGovernance struct {
	Auditors          []RawAuditor `msgpack:"auditors" json:"auditors,omitempty"`
	AuditorsReported  bool         `msgpack:"auditors_reported" json:"auditors_reported"`
	PromoterPledgePct *float64     `msgpack:"pledge_pct" json:"promoter_pledge_pct,omitempty"`
	RelatedParty      string       `msgpack:"related_party" json:"related_party,omitempty"`
	Revenue           string       `msgpack:"revenue" json:"revenue,omitempty"`
	Filings           []RawFiling  `msgpack:"filings" json:"filings,omitempty"`
	FilingsReported   bool         `msgpack:"filings_reported" json:"filings_reported"`
	Penalties         []RawPenalty `msgpack:"penalties" json:"penalties,omitempty"`
	PenaltiesReported bool         `msgpack:"penalties_reported" json:"penalties_reported"`
}

// RawAuditor is an auditor appointment. Change marks a disclosed change of
// auditor whose predecessor is not part of the history.
type RawAuditor struct {
	Name        string `msgpack:"name" json:"name"`
	AppointedOn string `msgpack:"appointed_on" json:"appointed_on"`
	Change      bool   `msgpack:"change" json:"change,omitempty"`
}

// RawFiling is a periodic filing
type RawFiling struct {
	PeriodEnd string `msgpack:"period_end" json:"period_end"`
	FiledOn   string `msgpack:"filed_on" json:"filed_on"`
}

// RawPenalty is a regulatory penalty disclosure
type RawPenalty struct {
	Date        string `msgpack:"date" json:"date"`
	Authority   string `msgpack:"authority" json:"authority"`
	Description string `msgpack:"description" json:"description"`
}

// RawDocument is a fetched credit-rating or filing document
type RawDocument struct {
	URL         string `msgpack:"url" json:"url"`
	Title       string `msgpack:"title" json:"title,omitempty"`
	ContentType string `msgpack:"content_type" json:"content_type,omitempty"`
	Text        string `msgpack:"text" json:"text"`
}

// RawListing is one row of the listing universe
type RawListing struct {
	Exchange       string  `msgpack:"exchange" json:"exchange"`
	Symbol         string  `msgpack:"symbol" json:"symbol"`
	Name           string  `msgpack:"name" json:"name"`
	Sector         string  `msgpack:"sector" json:"sector,omitempty"`
	ISIN           string  `msgpack:"isin" json:"isin,omitempty"`
	MarketCapRupee float64 `msgpack:"market_cap" json:"market_cap,omitempty"`
}

// RatingSummary is the structured summary of a credit-rating document
type RatingSummary struct {
	Agency          string `msgpack:"agency" json:"agency,omitempty"`
	Rating          string `msgpack:"rating" json:"rating,omitempty"`
	Outlook         string `msgpack:"outlook" json:"outlook,omitempty"`
	ProjectedGrowth string `msgpack:"projected_growth" json:"projected_growth,omitempty"`
	TimePeriod      string `msgpack:"time_period" json:"time_period,omitempty"`
	Evidence        string `msgpack:"evidence" json:"evidence,omitempty"`
	DocumentURL     string `msgpack:"document_url" json:"document_url,omitempty"`
}
