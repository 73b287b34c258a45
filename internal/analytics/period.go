// Package analytics implements the aggregation engine: period resolution,
// transaction classification, ledger and savings totals, per-category
// breakdowns and per-day time series. Everything in this package is pure
// computation over snapshots; fetching those snapshots is the caller's job.
package analytics

import (
	"fmt"

	"fintrack/internal/core"
)

// Period names a reporting window. All relative periods resolve to a range
// ending at "today"; only Custom carries explicit bounds.
type Period string

const (
	PeriodDay Period = "day"
	// PeriodWeek uses the calendar-week convention: the range starts on
	// Monday of the current week, not seven days back.
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
	PeriodCustom  Period = "custom"
)

// Periods lists every selectable period kind.
func Periods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear, PeriodCustom}
}

// ParsePeriod validates a period name. An empty string defaults to month,
// matching the store API's default.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodMonth, nil
	}
	p := Period(s)
	for _, known := range Periods() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Range is a closed interval of calendar days, Start <= End.
type Range struct {
	Start core.Date `json:"start_date"`
	End   core.Date `json:"end_date"`
}

// Days returns the number of calendar days in the range, inclusive.
func (r Range) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Resolve turns a period selector into a concrete inclusive range. The
// reference day is caller-supplied so reports are reproducible in tests.
// Custom periods require both bounds: missing ones fail with
// core.ErrIncompleteRange, an inverted pair with core.ErrInvalidRange.
func Resolve(p Period, start, end core.Date, today core.Date) (Range, error) {
	switch p {
	case PeriodDay:
		return Range{Start: today, End: today}, nil
	case PeriodWeek:
		// Monday-based; time.Weekday has Sunday == 0.
		offset := (int(today.Weekday()) + 6) % 7
		return Range{Start: today.AddDays(-offset), End: today}, nil
	case PeriodMonth:
		return Range{Start: core.NewDate(today.Year(), int(today.Month()), 1), End: today}, nil
	case PeriodQuarter:
		quarter := (int(today.Month()) - 1) / 3
		return Range{Start: core.NewDate(today.Year(), quarter*3+1, 1), End: today}, nil
	case PeriodYear:
		return Range{Start: core.NewDate(today.Year(), 1, 1), End: today}, nil
	case PeriodCustom:
		if start.IsZero() || end.IsZero() {
			return Range{}, core.ErrIncompleteRange
		}
		if end.Before(start) {
			return Range{}, fmt.Errorf("%w: %s before %s", core.ErrInvalidRange, end, start)
		}
		return Range{Start: start, End: end}, nil
	default:
		return Range{}, fmt.Errorf("unknown period %q", p)
	}
}
