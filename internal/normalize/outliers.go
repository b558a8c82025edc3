package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/screener/internal/domain"
	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"
)

// markOutliers flags records whose revenue or PAT deviates from the median
// of the preceding window by more than multiple times the median's magnitude.
// At least two prior values are required; otherwise the record is left alone.
func markOutliers(records []domain.FinancialRecord, window int, multiple float64) {
	if window < 2 || multiple <= 0 {
		return
	}

	metrics := []struct {
		name string
		get  func(domain.FinancialRecord) null.Float
	}{
		{"revenue", func(r domain.FinancialRecord) null.Float { return r.Revenue }},
		{"pat", func(r domain.FinancialRecord) null.Float { return r.PAT }},
	}

	for _, metric := range metrics {
		var history []float64
		for i := range records {
			value := metric.get(records[i])
			if records[i].Missing || !value.Valid {
				continue
			}

			if len(history) >= 2 {
				start := len(history) - window
				if start < 0 {
					start = 0
				}
				median := trailingMedian(history[start:])
				if median != 0 && math.Abs(value.Float64-median) > multiple*math.Abs(median) {
					records[i].LowConfidence = true
					records[i].Notes = append(records[i].Notes,
						fmt.Sprintf("%s %.2f deviates from trailing median %.2f", metric.name, value.Float64, median))
				}
			}
			history = append(history, value.Float64)
		}
	}
}

// trailingMedian returns the empirical median of values (the lower middle
// value for even counts)
func trailingMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
