package normalize

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// unitsToCrore maps monetary unit names to their value in crore
var unitsToCrore = map[string]decimal.Decimal{
	"rupee":    decimal.New(1, -7),
	"rupees":   decimal.New(1, -7),
	"inr":      decimal.New(1, -7),
	"thousand": decimal.New(1, -4),
	"lakh":     decimal.New(1, -2),
	"lakhs":    decimal.New(1, -2),
	"million":  decimal.New(1, -1),
	"crore":    decimal.New(1, 0),
	"crores":   decimal.New(1, 0),
	"cr":       decimal.New(1, 0),
	"billion":  decimal.New(1, 2),
}

// unitFactor returns the multiplier converting amounts in unit to crore
func unitFactor(unit string) (decimal.Decimal, bool) {
	factor, ok := unitsToCrore[strings.ToLower(strings.TrimSpace(unit))]
	return factor, ok
}

// missingTokens are textual placeholders upstreams use for absent values
var missingTokens = map[string]bool{
	"":              true,
	"-":             true,
	"--":            true,
	"na":            true,
	"n/a":           true,
	"nil":           true,
	"null":          true,
	"none":          true,
	"not declared":  true,
	"not available": true,
}

// parseNumber parses an upstream numeric string. Thousand separators, currency
// symbols and accounting-style parentheses are accepted. A missing placeholder
// yields an invalid null.Float and no error.
func parseNumber(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(s)] {
		return decimal.Zero, false, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", " ", "", "%", "").Replace(s)

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid number %q", raw)
	}
	if negative {
		value = value.Neg()
	}
	return value, true, nil
}

// scaled parses raw and multiplies it by factor
func scaled(raw string, factor decimal.Decimal) (null.Float, error) {
	value, ok, err := parseNumber(raw)
	if err != nil || !ok {
		return null.Float{}, err
	}
	return null.FloatFrom(value.Mul(factor).InexactFloat64()), nil
}

// plain parses raw without scaling
func plain(raw string) (null.Float, error) {
	return scaled(raw, decimal.New(1, 0))
}
