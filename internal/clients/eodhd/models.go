package eodhd

import "encoding/json"

// FundamentalsResponse is the subset of /fundamentals used by the adapter.
type FundamentalsResponse struct {
	General     *GeneralInfo `json:"General"`
	SharesStats *SharesStats `json:"SharesStats"`
	Earnings    *Earnings    `json:"Earnings"`
	Financials  *Financials  `json:"Financials"`
}

// GeneralInfo contains company identification.
type GeneralInfo struct {
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Exchange     string `json:"Exchange"`
	CurrencyCode string `json:"CurrencyCode"`
	Sector       string `json:"Sector"`
	ISIN         string `json:"ISIN"`
}

// SharesStats contains share count statistics.
type SharesStats struct {
	SharesOutstanding float64 `json:"SharesOutstanding"`
	SharesFloat       float64 `json:"SharesFloat"`
}

// Earnings contains per-quarter reported EPS keyed by period end date.
type Earnings struct {
	History map[string]EarningsHistoryEntry `json:"History"`
}

// EarningsHistoryEntry is one reported quarter.
type EarningsHistoryEntry struct {
	ReportDate string   `json:"reportDate"`
	Date       string   `json:"date"`
	EPSActual  *float64 `json:"epsActual"`
}

// Financials contains financial statements.
type Financials struct {
	IncomeStatement *FinancialStatement `json:"Income_Statement"`
}

// FinancialStatement holds quarterly and yearly statement rows keyed by
// period end date. Numbers arrive as strings or JSON numbers.
type FinancialStatement struct {
	Currency  string                                `json:"currency_symbol"`
	Quarterly map[string]map[string]json.RawMessage `json:"quarterly"`
	Yearly    map[string]map[string]json.RawMessage `json:"yearly"`
}

// Split is one row of /splits.
type Split struct {
	Date  string `json:"date"`
	Split string `json:"split"`
}

// RealTimeQuote is the /real-time response.
type RealTimeQuote struct {
	Code          string          `json:"code"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Close         json.RawMessage `json:"close"`
	PreviousClose json.RawMessage `json:"previousClose"`
}
