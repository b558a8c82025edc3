package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuarterOf(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected Period
	}{
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), Period{2026, 1}},
		{time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), Period{2026, 1}},
		{time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC), Period{2026, 2}},
		{time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), Period{2026, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.expected, QuarterOf(tt.date))
		})
	}
}

func TestPeriod_NextAndEndDate(t *testing.T) {
	q4 := Period{Year: 2025, Quarter: 4}
	assert.Equal(t, Period{Year: 2026, Quarter: 1}, q4.Next())
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), q4.EndDate())

	q1 := Period{Year: 2024, Quarter: 1}
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), q1.EndDate())
	assert.True(t, q1.Before(q4))

	annual := Period{Year: 2026}
	assert.Equal(t, PeriodAnnual, annual.Kind())
	assert.Equal(t, Period{Year: 2027}, annual.Next())
}

func TestParsePeriod_RoundTrip(t *testing.T) {
	for _, p := range []Period{{2026, 2}, {1999, 4}, {2026, 0}} {
		parsed, err := ParsePeriod(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParsePeriod("2026Q5")
	assert.Error(t, err)
}

func TestFieldSet_AsOfPeriod(t *testing.T) {
	now := time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026Q4", FieldSetQuarterly.AsOfPeriod(now))
	assert.Equal(t, "2026Q4", FieldSetGovernance.AsOfPeriod(now))
	assert.Equal(t, "2026-10-16", FieldSetPrice.AsOfPeriod(now))
	assert.Equal(t, "2026", FieldSetCreditRating.AsOfPeriod(now))
	assert.False(t, FieldSet("bogus").Valid())
}

func TestEntity_ID(t *testing.T) {
	e := Entity{Exchange: "nse", Symbol: "infy"}
	assert.Equal(t, "NSE:INFY", e.ID())

	parsed, ok := ParseEntityID("NSE:INFY")
	require.True(t, ok)
	assert.Equal(t, e.ID(), parsed.ID())

	_, ok = ParseEntityID("INFY")
	assert.False(t, ok)
}

func TestInsufficientHistoryError_Is(t *testing.T) {
	var err error = &InsufficientHistoryError{Required: 4, Available: 2}
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestUnavailableError_AllNotFound(t *testing.T) {
	err := &UnavailableError{
		EntityID: "NSE:ABC",
		FieldSet: FieldSetActions,
		Attempts: []SourceAttempt{{Source: "eodhd", Reason: ReasonNotFound}},
	}
	assert.True(t, err.AllNotFound())
	assert.Contains(t, err.Error(), "eodhd=not-found")

	err.Attempts = append(err.Attempts, SourceAttempt{Source: "nse", Reason: ReasonTimeout})
	assert.False(t, err.AllNotFound())
}

func TestSeverity_Text(t *testing.T) {
	s, err := ParseSeverity("HIGH")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "high", string(text))
}
