package testing

import (
	"strconv"
	"time"

	"github.com/aristath/screener/internal/domain"
)

// FirstFixturePeriod is the first quarter of QuarterlyPayload series
var FirstFixturePeriod = domain.Period{Year: 2025, Quarter: 1}

// QuarterlyPayload builds a crore-denominated quarterly payload with one
// period per revenue value, starting at FirstFixturePeriod. pat and eps may be
// shorter than revenue; a zero EPS is left out of the period.
func QuarterlyPayload(revenue, pat, eps []float64) *domain.RawPayload {
	payload := &domain.RawPayload{
		FieldSet:   domain.FieldSetQuarterly,
		Unit:       "crore",
		Currency:   "INR",
		PeriodKind: domain.PeriodQuarter,
	}

	p := FirstFixturePeriod
	for i := range revenue {
		values := map[string]string{
			domain.ValueRevenue: formatFloat(revenue[i]),
		}
		if i < len(pat) {
			values[domain.ValuePAT] = formatFloat(pat[i])
		}
		if i < len(eps) && eps[i] != 0 {
			values[domain.ValueEPS] = formatFloat(eps[i])
		}
		payload.Periods = append(payload.Periods, domain.RawPeriod{
			Label:   p.String(),
			EndDate: p.EndDate().Format("2006-01-02"),
			Values:  values,
		})
		p = p.Next()
	}
	return payload
}

// ScenarioXPayload is a steady 10% grower whose last EPS is 10
func ScenarioXPayload() *domain.RawPayload {
	return QuarterlyPayload(
		[]float64{100, 110, 121, 133.1},
		[]float64{10, 11, 12.1, 13.31},
		[]float64{0, 0, 0, 10},
	)
}

// QuotePayload builds a price payload
func QuotePayload(price, shares float64) *domain.RawPayload {
	return &domain.RawPayload{
		FieldSet: domain.FieldSetPrice,
		Currency: "INR",
		Quote: &domain.RawQuote{
			Price:  price,
			Shares: shares,
			AsOf:   time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC),
		},
	}
}

// ActionsPayload builds a corporate-actions payload
func ActionsPayload(actions ...domain.RawAction) *domain.RawPayload {
	return &domain.RawPayload{
		FieldSet: domain.FieldSetActions,
		Actions:  actions,
	}
}

// GovernancePayload builds a governance payload with only the promoter
// pledge reported
func GovernancePayload(pledgePct float64) *domain.RawPayload {
	return &domain.RawPayload{
		FieldSet: domain.FieldSetGovernance,
		Unit:     "crore",
		Governance: &domain.RawGovernance{
			PromoterPledgePct: &pledgePct,
		},
	}
}

// RatingPayload builds a credit-rating payload
func RatingPayload(agency, rating, growth string) *domain.RawPayload {
	return &domain.RawPayload{
		FieldSet: domain.FieldSetCreditRating,
		Document: &domain.RawDocument{URL: "https://ratings.example/" + agency, Text: "rationale"},
		Rating: &domain.RatingSummary{
			Agency:          agency,
			Rating:          rating,
			ProjectedGrowth: growth,
		},
	}
}

// UniversePayload builds an NSE universe payload, one listing per symbol
func UniversePayload(symbols ...string) *domain.RawPayload {
	payload := &domain.RawPayload{FieldSet: domain.FieldSetUniverse}
	for _, symbol := range symbols {
		payload.Listings = append(payload.Listings, domain.RawListing{
			Exchange: "NSE",
			Symbol:   symbol,
			Name:     symbol + " Ltd",
		})
	}
	return payload
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
