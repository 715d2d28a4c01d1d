// ABOUTME: Tests for table layout, type resolution, intervals, and date parsing.
// ABOUTME: Covers the shared rules both pipeline halves depend on.
package models

import (
	"errors"
	"testing"
	"time"
)

func TestTableForType(t *testing.T) {
	tests := []struct {
		recordType string
		want       Table
	}{
		{"HKQuantityTypeIdentifierStepCount", TableRecords},
		{"HKWorkoutActivityTypeRunning", TableWorkouts},
		{"HKWorkoutActivityType", TableWorkouts},
		{"", TableRecords},
		{"hkworkoutactivitytyperunning", TableRecords},
		{"XHKWorkoutActivityTypeRunning", TableRecords},
	}
	for _, tt := range tests {
		if got := TableForType(tt.recordType); got != tt.want {
			t.Errorf("TableForType(%q) = %s, want %s", tt.recordType, got, tt.want)
		}
	}
}

func TestNumericColumnFollowsTable(t *testing.T) {
	if got := NumericColumn(TableForType("HKWorkoutActivityTypeCycling")); got != "duration" {
		t.Errorf("workout numeric column = %s, want duration", got)
	}
	if got := NumericColumn(TableForType("HKQuantityTypeIdentifierHeartRate")); got != "value" {
		t.Errorf("record numeric column = %s, want value", got)
	}
}

func TestRowValuesMatchColumns(t *testing.T) {
	rows := []Row{&Record{}, &Workout{}, &WorkoutStat{}}
	for _, r := range rows {
		if got, want := len(r.Values()), len(Columns(r.Table())); got != want {
			t.Errorf("%s: %d values for %d columns", r.Table(), got, want)
		}
	}
}

func TestColumnsReturnsCopy(t *testing.T) {
	cols := Columns(TableRecords)
	cols[0] = "mutated"
	if Columns(TableRecords)[0] != "type" {
		t.Error("Columns must not expose the shared layout")
	}
}

func TestParseInterval(t *testing.T) {
	for _, s := range []string{"day", "week", "month", "year"} {
		if _, err := ParseInterval(s); err != nil {
			t.Errorf("ParseInterval(%q) failed: %v", s, err)
		}
	}
	for _, s := range []string{"fortnight", "", "Month", "hour"} {
		_, err := ParseInterval(s)
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("ParseInterval(%q) err = %v, want ErrInvalidInterval", s, err)
		}
	}
}

func TestParseExportDate(t *testing.T) {
	got, err := ParseExportDate("startDate", "2022-04-29 05:49:44 -0400")
	if err != nil {
		t.Fatalf("ParseExportDate failed: %v", err)
	}
	want := time.Date(2022, 4, 29, 9, 49, 44, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	_, err = ParseExportDate("endDate", "2022-04-29T05:49:44Z")
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
	var dpe *DateParseError
	if !errors.As(err, &dpe) || dpe.Field != "endDate" {
		t.Errorf("expected DateParseError for endDate, got %v", err)
	}
}

func TestParseDateBound(t *testing.T) {
	from, err := ParseDateBound("2020-01-01", false)
	if err != nil {
		t.Fatalf("lower bound: %v", err)
	}
	if !from.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}

	to, err := ParseDateBound("2020-01-01", true)
	if err != nil {
		t.Fatalf("upper bound: %v", err)
	}
	if to.Day() != 1 || to.Hour() != 23 || to.Minute() != 59 {
		t.Errorf("date-only upper bound should cover the day, got %v", to)
	}

	exact, err := ParseDateBound("2020-01-01T10:00:00+02:00", true)
	if err != nil {
		t.Fatalf("rfc3339 bound: %v", err)
	}
	if !exact.Equal(time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("exact = %v", exact)
	}

	if b, err := ParseDateBound("  ", false); err != nil || b != nil {
		t.Errorf("empty bound = %v, %v; want nil, nil", b, err)
	}

	if _, err := ParseDateBound("yesterday", false); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(&DateParseError{Field: "startDate"}); got != "MalformedInput" {
		t.Errorf("ErrorKind(DateParseError) = %s", got)
	}
	if got := ErrorKind(errors.New("boom")); got != "Internal" {
		t.Errorf("ErrorKind(other) = %s", got)
	}
	if got := ErrorKind(nil); got != "" {
		t.Errorf("ErrorKind(nil) = %q", got)
	}
}
