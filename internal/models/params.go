// ABOUTME: Query-path request parameters, trend intervals, and date parsing.
// ABOUTME: Date parsing here is shared with the record normalizer.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportDateLayout is the fixed date format used by the health export.
const ExportDateLayout = "2006-01-02 15:04:05 -0700"

// DefaultLimit caps search results when no limit is given.
const DefaultLimit = 10

// SearchParams is the uniform filter request of the query path.
// Nil pointers mean "no filter".
type SearchParams struct {
	Type        string
	SourceName  string
	DateFrom    *time.Time
	DateTo      *time.Time
	ValueMin    *float64
	ValueMax    *float64
	DurationMin *float64
	DurationMax *float64
	Limit       int
}

// GetLimit returns Limit, defaulting to DefaultLimit.
func (p SearchParams) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// Interval is a calendar bucket width for trend queries.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// ParseInterval accepts exactly day, week, month, or year.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return Interval(s), nil
	}
	return "", fmt.Errorf("%w: %q (use day, week, month, or year)", ErrInvalidInterval, s)
}

// ParseExportDate parses a date attribute in ExportDateLayout.
func ParseExportDate(field, value string) (time.Time, error) {
	t, err := time.Parse(ExportDateLayout, value)
	if err != nil {
		return time.Time{}, &DateParseError{Field: field, Value: value}
	}
	return t, nil
}

// ParseDateBound parses a user-supplied date filter.
// Accepts RFC 3339, ExportDateLayout, or YYYY-MM-DD. A date-only upper bound
// is moved to the last microsecond of that day so the range stays inclusive.
func ParseDateBound(s string, upper bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, ExportDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidParams, s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
