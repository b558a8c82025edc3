package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/screener/internal/domain"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// parseRatio splits "a/b", "a:b" or "a-for-b" into its two parts
func parseRatio(ratio string) (decimal.Decimal, decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(ratio))
	var left, right string
	switch {
	case strings.Contains(s, "/"):
		left, right, _ = strings.Cut(s, "/")
	case strings.Contains(s, ":"):
		left, right, _ = strings.Cut(s, ":")
	case strings.Contains(s, "for"):
		left, right, _ = strings.Cut(s, "for")
		left = strings.TrimSuffix(strings.TrimSpace(left), "-")
		right = strings.TrimPrefix(strings.TrimSpace(right), "-")
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("unrecognized ratio %q", ratio)
	}

	a, err := decimal.NewFromString(strings.TrimSpace(left))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("unrecognized ratio %q", ratio)
	}
	b, err := decimal.NewFromString(strings.TrimSpace(right))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("unrecognized ratio %q", ratio)
	}
	if !a.IsPositive() || !b.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("non-positive ratio %q", ratio)
	}
	return a, b, nil
}

// actionFactor returns the share-count multiplier of an action. Splits are
// quoted new/old ("2/1" doubles the count); bonuses are bonus:held ("1:1"
// gives one new share per held share, also doubling the count).
func actionFactor(kind domain.CorporateActionKind, ratio string) (float64, error) {
	a, b, err := parseRatio(ratio)
	if err != nil {
		return 0, err
	}
	switch kind {
	case domain.ActionSplit:
		return a.Div(b).InexactFloat64(), nil
	case domain.ActionBonus:
		return a.Add(b).Div(b).InexactFloat64(), nil
	default:
		return 0, fmt.Errorf("unknown corporate action %q", kind)
	}
}

// applyActions rescales per-share values of every record that ended before an
// action's effective date. Records are modified in place.
func applyActions(records []domain.FinancialRecord, actions []domain.CorporateAction) {
	sorted := make([]domain.CorporateAction, len(actions))
	copy(sorted, actions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, action := range sorted {
		if action.Factor <= 0 || action.Factor == 1 {
			continue
		}
		for i := range records {
			r := &records[i]
			if r.Missing || !r.EndDate.Before(action.Date) {
				continue
			}
			r.EPS = divide(r.EPS, action.Factor)
			r.Price = divide(r.Price, action.Factor)
			if r.Shares.Valid {
				r.Shares = null.FloatFrom(r.Shares.Float64 * action.Factor)
			}
			r.Notes = append(r.Notes, fmt.Sprintf("adjusted for %s %s on %s", action.Kind, action.Ratio, action.Date.Format("2006-01-02")))
		}
	}
}

func divide(v null.Float, factor float64) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(v.Float64 / factor)
}
