package nse

// PreOpenResponse is the /api/market-data-pre-open response
type PreOpenResponse struct {
	Data []PreOpenItem `json:"data"`
}

// PreOpenItem is one security in the pre-open listing
type PreOpenItem struct {
	Metadata PreOpenMetadata `json:"metadata"`
}

// PreOpenMetadata holds the fields used to build the universe. MarketCap is
// in rupees.
type PreOpenMetadata struct {
	Symbol        string  `json:"symbol"`
	Identifier    string  `json:"identifier"`
	LastPrice     float64 `json:"lastPrice"`
	PreviousClose float64 `json:"previousClose"`
	MarketCap     float64 `json:"marketCap"`
}

// QuoteResponse is the /api/quote-equity response
type QuoteResponse struct {
	Info         QuoteInfo    `json:"info"`
	Metadata     QuoteMeta    `json:"metadata"`
	SecurityInfo SecurityInfo `json:"securityInfo"`
	PriceInfo    PriceInfo    `json:"priceInfo"`
	IndustryInfo IndustryInfo `json:"industryInfo"`
}

// QuoteInfo identifies the security
type QuoteInfo struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	ISIN        string `json:"isin"`
}

// QuoteMeta carries the quote timestamp ("16-Oct-2026 16:00:00")
type QuoteMeta struct {
	LastUpdateTime string `json:"lastUpdateTime"`
}

// SecurityInfo carries the issued share count
type SecurityInfo struct {
	IssuedSize float64 `json:"issuedSize"`
}

// PriceInfo carries the traded price
type PriceInfo struct {
	LastPrice float64 `json:"lastPrice"`
	Close     float64 `json:"close"`
}

// IndustryInfo carries the sector classification
type IndustryInfo struct {
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}
