// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"
)

// Entity is a listed company identified by exchange and symbol
type Entity struct {
	Exchange string `json:"exchange" msgpack:"exchange"`
	Symbol   string `json:"symbol" msgpack:"symbol"`
	Name     string `json:"name,omitempty" msgpack:"name"`
	Sector   string `json:"sector,omitempty" msgpack:"sector"`
	ISIN     string `json:"isin,omitempty" msgpack:"isin"`
}

// ID returns the stable identifier used for cache keys and reports ("NSE:INFY")
func (e Entity) ID() string {
	return strings.ToUpper(e.Exchange) + ":" + strings.ToUpper(e.Symbol)
}

// UniverseEntity is the pseudo-entity under which the listing universe is cached
var UniverseEntity = Entity{Exchange: "ALL", Symbol: "UNIVERSE"}

// ParseEntityID splits an "EXCHANGE:SYMBOL" identifier.
func ParseEntityID(id string) (Entity, bool) {
	exchange, symbol, ok := strings.Cut(id, ":")
	if !ok || exchange == "" || symbol == "" {
		return Entity{}, false
	}
	return Entity{Exchange: strings.ToUpper(exchange), Symbol: strings.ToUpper(symbol)}, true
}

// FieldSet names a group of data points fetched and cached together
type FieldSet string

const (
	FieldSetUniverse     FieldSet = "universe"
	FieldSetQuarterly    FieldSet = "quarterly-fundamentals"
	FieldSetPrice        FieldSet = "price"
	FieldSetActions      FieldSet = "corporate-actions"
	FieldSetGovernance   FieldSet = "governance"
	FieldSetCreditRating FieldSet = "credit-rating"
)

// AllFieldSets lists every field set in fetch order
var AllFieldSets = []FieldSet{
	FieldSetUniverse,
	FieldSetQuarterly,
	FieldSetPrice,
	FieldSetActions,
	FieldSetGovernance,
	FieldSetCreditRating,
}

// Valid reports whether fs is a known field set
func (fs FieldSet) Valid() bool {
	for _, known := range AllFieldSets {
		if fs == known {
			return true
		}
	}
	return false
}

// AsOfPeriod returns the cache period identifier for a field set fetched at t.
// Quarter-based sets roll over with the calendar quarter, prices with the day
// and credit ratings with the year.
func (fs FieldSet) AsOfPeriod(t time.Time) string {
	switch fs {
	case FieldSetPrice, FieldSetUniverse:
		return t.Format("2006-01-02")
	case FieldSetCreditRating:
		return t.Format("2006")
	default:
		return QuarterOf(t).String()
	}
}
