package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodKind distinguishes quarterly from annual reporting periods
type PeriodKind string

const (
	PeriodQuarter PeriodKind = "quarter"
	PeriodAnnual  PeriodKind = "annual"
)

// Period is a calendar-aligned reporting period. Quarter is 1-4 for quarterly
// periods and 0 for annual ones.
type Period struct {
	Year    int
	Quarter int
}

// QuarterOf returns the calendar quarter containing t
func QuarterOf(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// Kind returns whether p is quarterly or annual
func (p Period) Kind() PeriodKind {
	if p.Quarter == 0 {
		return PeriodAnnual
	}
	return PeriodQuarter
}

// IsZero reports whether p is unset
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// String formats p as "2026Q2" or "2026"
func (p Period) String() string {
	if p.Quarter == 0 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// Index returns a monotonic ordinal for comparing and stepping periods of the same kind
func (p Period) Index() int {
	if p.Quarter == 0 {
		return p.Year
	}
	return p.Year*4 + p.Quarter - 1
}

// Next returns the following period of the same kind
func (p Period) Next() Period {
	if p.Quarter == 0 {
		return Period{Year: p.Year + 1}
	}
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Before reports whether p precedes o
func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

// EndDate returns the last calendar day of the period
func (p Period) EndDate() time.Time {
	month := 12
	if p.Quarter != 0 {
		month = p.Quarter * 3
	}
	return time.Date(p.Year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePeriod parses the canonical "2026Q2" / "2026" form produced by String
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if yearPart, quarterPart, ok := strings.Cut(s, "Q"); ok {
		year, err := strconv.Atoi(yearPart)
		if err != nil {
			return Period{}, fmt.Errorf("invalid period year %q: %w", s, err)
		}
		quarter, err := strconv.Atoi(quarterPart)
		if err != nil || quarter < 1 || quarter > 4 {
			return Period{}, fmt.Errorf("invalid period quarter %q", s)
		}
		return Period{Year: year, Quarter: quarter}, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period{Year: year}, nil
}
