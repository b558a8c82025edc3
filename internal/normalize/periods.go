package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/screener/internal/domain"
)

var (
	fiscalQuarterRe   = regexp.MustCompile(`(?i)^Q([1-4])\s*[-']?\s*FY\s*'?(\d{2}|\d{4})$`)
	calendarQuarterRe = regexp.MustCompile(`(?i)^(?:(\d{4})\s*-?\s*Q([1-4])|Q([1-4])\s*[-']?\s*(\d{4}))$`)
	monthYearRe       = regexp.MustCompile(`(?i)^([a-z]{3})[a-z]*\.?[\s\-']*(\d{2}|\d{4})$`)
	fiscalYearRe      = regexp.MustCompile(`(?i)^FY\s*'?(\d{2}|\d{4})$`)
	yearRe            = regexp.MustCompile(`^(\d{4})$`)
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// dateLayouts are the date formats accepted from upstreams
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"02 Jan 2006",
	"02/01/2006",
}

// ParseDate parses an upstream date in any of the accepted layouts
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// NearestQuarter maps a date to the calendar quarter whose end is closest.
// Reports dated a few days after quarter end ("2026-07-02") align with the
// quarter that just closed.
func NearestQuarter(t time.Time) domain.Period {
	current := domain.QuarterOf(t)
	previous := domain.Period{Year: current.Year, Quarter: current.Quarter - 1}
	if previous.Quarter == 0 {
		previous = domain.Period{Year: current.Year - 1, Quarter: 4}
	}

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if day.Sub(previous.EndDate()) < current.EndDate().Sub(day) {
		return previous
	}
	return current
}

// alignPeriod resolves a raw period to a calendar-aligned period of kind.
// An explicit end date wins over the label.
func alignPeriod(raw domain.RawPeriod, kind domain.PeriodKind, fyStart int) (domain.Period, time.Time, error) {
	if raw.EndDate != "" {
		end, err := ParseDate(raw.EndDate)
		if err == nil {
			return fromEndDate(end, kind), end, nil
		}
	}

	label := strings.TrimSpace(raw.Label)
	if label == "" {
		return domain.Period{}, time.Time{}, fmt.Errorf("period has neither label nor end date")
	}

	if end, err := ParseDate(label); err == nil {
		return fromEndDate(end, kind), end, nil
	}

	if m := fiscalQuarterRe.FindStringSubmatch(label); m != nil {
		if kind == domain.PeriodAnnual {
			return domain.Period{}, time.Time{}, fmt.Errorf("quarterly label %q in annual series", label)
		}
		quarter, _ := strconv.Atoi(m[1])
		fy, err := expandYear(m[2])
		if err != nil {
			return domain.Period{}, time.Time{}, err
		}
		end := fiscalQuarterEnd(fy, quarter, fyStart)
		return NearestQuarter(end), end, nil
	}

	if m := calendarQuarterRe.FindStringSubmatch(label); m != nil {
		if kind == domain.PeriodAnnual {
			return domain.Period{}, time.Time{}, fmt.Errorf("quarterly label %q in annual series", label)
		}
		yearText, quarterText := m[1], m[2]
		if yearText == "" {
			yearText, quarterText = m[4], m[3]
		}
		year, err := expandYear(yearText)
		if err != nil {
			return domain.Period{}, time.Time{}, err
		}
		quarter, _ := strconv.Atoi(quarterText)
		p := domain.Period{Year: year, Quarter: quarter}
		return p, p.EndDate(), nil
	}

	if m := monthYearRe.FindStringSubmatch(label); m != nil {
		month, ok := monthAbbrev[strings.ToLower(m[1])]
		if !ok {
			return domain.Period{}, time.Time{}, fmt.Errorf("unknown month in %q", label)
		}
		year, err := expandYear(m[2])
		if err != nil {
			return domain.Period{}, time.Time{}, err
		}
		end := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		return fromEndDate(end, kind), end, nil
	}

	if m := fiscalYearRe.FindStringSubmatch(label); m != nil {
		if kind != domain.PeriodAnnual {
			return domain.Period{}, time.Time{}, fmt.Errorf("annual label %q in quarterly series", label)
		}
		fy, err := expandYear(m[1])
		if err != nil {
			return domain.Period{}, time.Time{}, err
		}
		end := fiscalQuarterEnd(fy, 4, fyStart)
		return domain.Period{Year: end.Year()}, end, nil
	}

	if m := yearRe.FindStringSubmatch(label); m != nil {
		if kind != domain.PeriodAnnual {
			return domain.Period{}, time.Time{}, fmt.Errorf("annual label %q in quarterly series", label)
		}
		year, err := expandYear(m[1])
		if err != nil {
			return domain.Period{}, time.Time{}, err
		}
		p := domain.Period{Year: year}
		return p, p.EndDate(), nil
	}

	return domain.Period{}, time.Time{}, fmt.Errorf("unrecognized period label %q", label)
}

func fromEndDate(end time.Time, kind domain.PeriodKind) domain.Period {
	quarter := NearestQuarter(end)
	if kind == domain.PeriodAnnual {
		return domain.Period{Year: quarter.Year}
	}
	return quarter
}

// fiscalQuarterEnd returns the last day of fiscal quarter q of fiscal year fy.
// Fiscal year fy ends in the calendar year fy when it does not start in January.
func fiscalQuarterEnd(fy, quarter, fyStart int) time.Time {
	if fyStart < 1 || fyStart > 12 {
		fyStart = 4
	}
	startYear := fy
	if fyStart > 1 {
		startYear = fy - 1
	}
	// Months since year 0 of the last month in the quarter
	absMonth := startYear*12 + (fyStart - 1) + quarter*3 - 1
	year, month := absMonth/12, time.Month(absMonth%12+1)
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

func expandYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	if len(s) == 2 {
		year += 2000
	}
	if year < 1990 || year > 2100 {
		return 0, fmt.Errorf("year %d out of range", year)
	}
	return year, nil
}
