package trendlyne

import "encoding/json"

// SearchItem is one autocomplete hit
type SearchItem struct {
	Label           string `json:"label"`
	Value           string `json:"value"`
	SlugName        string `json:"slugname"`
	Country         string `json:"country"`
	DefaultExchange string `json:"defaultExchange"`
	NSECode         string `json:"NSEcode"`
	BSECode         string `json:"BSEcode"`
	NextURL         string `json:"nexturl"`
}

// FundamentalsResponse is the results endpoint document
type FundamentalsResponse struct {
	Body FundamentalsBody `json:"body"`
}

// FundamentalsBody lists quarters newest first and holds one dump per
// statement kind ("consolidated", "standalone"), each keyed by quarter label.
type FundamentalsBody struct {
	QuarterlyOrder    []string                   `json:"quarterlyOrder"`
	QuarterlyDataDump map[string]json.RawMessage `json:"quarterlyDataDump"`
}
