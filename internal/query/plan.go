// ABOUTME: Backend-neutral query plans built from uniform search parameters.
// ABOUTME: Resolves the target table and the predicate set every backend must honor.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/healthx/internal/models"
)

// Operation names a query-path operation.
type Operation string

const (
	OpSummary      Operation = "summary"
	OpSearch       Operation = "search"
	OpStatistics   Operation = "statistics"
	OpTrend        Operation = "trend"
	OpValueSearch  Operation = "value_search"
	OpWorkoutStats Operation = "workout_stats"
)

// Operations lists every supported operation.
var Operations = []Operation{OpSummary, OpSearch, OpStatistics, OpTrend, OpValueSearch, OpWorkoutStats}

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operation %q", models.ErrInvalidParams, s)
}

// Cmp is a predicate comparison.
type Cmp string

const (
	Eq  Cmp = "="
	Gte Cmp = ">="
	Lte Cmp = "<="
)

// Predicate is one filter over a column. Value is a string, float64, or UTC time.Time.
type Predicate struct {
	Column string
	Cmp    Cmp
	Value  any
}

// Result keys of the aggregate operations.
var (
	SummaryColumns    = []string{"table", "type", "count"}
	StatisticsColumns = []string{"type", "unit", "count", "average", "sum", "min", "max"}
	TrendColumns      = []string{"type", "bucket", "count", "average", "sum", "min", "max"}
)

// Plan is a fully validated query. Backends translate it without
// re-deciding table, predicates, ordering, or limit.
type Plan struct {
	Op       Operation
	Table    models.Table
	Filters  []Predicate
	Interval models.Interval
	Limit    int
	Columns  []string

	// Join is the table Filters apply to when it differs from Table.
	// Only set for workout statistics, which are filtered through their workout.
	Join models.Table

	// Parts holds one single-table plan per table for summaries.
	Parts []*Plan
}

// tieBreakers order rows that share a startDate. Every backend sorts by
// startDate descending and then by these columns ascending, so equal
// timestamps come back in the same order whichever engine answers.
var tieBreakers = map[models.Table][]string{
	models.TableRecords:      {"type", "sourceName", "value"},
	models.TableWorkouts:     {"type", "sourceName", "duration"},
	models.TableWorkoutStats: {"type", "unit", "sum"},
}

// FilterTable returns the table the plan's predicates refer to.
func (p *Plan) FilterTable() models.Table {
	if p.Join != "" {
		return p.Join
	}
	return p.Table
}

// Search returns the newest rows matching p.
func Search(p models.SearchParams) (*Plan, error) {
	t, err := resolve(p)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Op:      OpSearch,
		Table:   t,
		Filters: filters(t, p),
		Limit:   p.GetLimit(),
		Columns: models.Columns(t),
	}, nil
}

// Statistics aggregates the numeric column per type and unit.
func Statistics(p models.SearchParams) (*Plan, error) {
	t, err := resolve(p)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Op:      OpStatistics,
		Table:   t,
		Filters: filters(t, p),
		Columns: StatisticsColumns,
	}, nil
}

// Trend aggregates the numeric column per type and calendar bucket.
// The interval is validated before anything else.
func Trend(p models.SearchParams, interval string) (*Plan, error) {
	iv, err := models.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	t, err := resolve(p)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Op:       OpTrend,
		Table:    t,
		Filters:  filters(t, p),
		Interval: iv,
		Columns:  TrendColumns,
	}, nil
}

// ValueSearch finds rows whose raw value equals value exactly.
// Records match on textValue; workouts match on the parsed duration.
func ValueSearch(p models.SearchParams, value string) (*Plan, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: value is required", models.ErrInvalidParams)
	}
	t, err := resolve(p)
	if err != nil {
		return nil, err
	}
	fs := filters(t, p)
	if t == models.TableWorkouts {
		d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: workout duration %q is not a number", models.ErrInvalidParams, value)
		}
		fs = append(fs, Predicate{Column: "duration", Cmp: Eq, Value: d})
	} else {
		fs = append(fs, Predicate{Column: "textValue", Cmp: Eq, Value: value})
	}
	return &Plan{
		Op:      OpValueSearch,
		Table:   t,
		Filters: fs,
		Limit:   p.GetLimit(),
		Columns: models.Columns(t),
	}, nil
}

// Summary counts rows per type. Without a type filter it covers records and
// workouts; a value range keeps it to records and a duration range to workouts.
func Summary(p models.SearchParams) (*Plan, error) {
	var tables []models.Table
	switch {
	case p.Type != "":
		t, err := resolve(p)
		if err != nil {
			return nil, err
		}
		tables = []models.Table{t}
	case hasValueRange(p) && hasDurationRange(p):
		return nil, fmt.Errorf("%w: value and duration ranges cannot be combined", models.ErrInvalidParams)
	case hasValueRange(p):
		tables = []models.Table{models.TableRecords}
	case hasDurationRange(p):
		tables = []models.Table{models.TableWorkouts}
	default:
		tables = []models.Table{models.TableRecords, models.TableWorkouts}
	}
	if err := checkDates(p); err != nil {
		return nil, err
	}

	plan := &Plan{Op: OpSummary, Columns: SummaryColumns}
	for _, t := range tables {
		plan.Parts = append(plan.Parts, &Plan{
			Op:      OpSummary,
			Table:   t,
			Filters: filters(t, p),
			Columns: SummaryColumns,
		})
	}
	plan.Table = plan.Parts[0].Table
	return plan, nil
}

// WorkoutStats returns statistics rows of the workouts matching p, joined on workoutId.
func WorkoutStats(p models.SearchParams) (*Plan, error) {
	if p.Type != "" && models.TableForType(p.Type) != models.TableWorkouts {
		return nil, fmt.Errorf("%w: %q is not a workout type", models.ErrInvalidParams, p.Type)
	}
	if hasValueRange(p) {
		return nil, fmt.Errorf("%w: value range does not apply to workouts; use a duration range", models.ErrInvalidParams)
	}
	if err := checkDates(p); err != nil {
		return nil, err
	}
	return &Plan{
		Op:      OpWorkoutStats,
		Table:   models.TableWorkoutStats,
		Join:    models.TableWorkouts,
		Filters: filters(models.TableWorkouts, p),
		Limit:   p.GetLimit(),
		Columns: models.Columns(models.TableWorkoutStats),
	}, nil
}

// resolve picks the table from the type and rejects ranges bound to the wrong column.
// Without a type, a duration range alone selects workouts, as in Summary.
func resolve(p models.SearchParams) (models.Table, error) {
	t := models.TableForType(p.Type)
	switch {
	case p.Type == "" && hasValueRange(p) && hasDurationRange(p):
		return "", fmt.Errorf("%w: value and duration ranges cannot be combined", models.ErrInvalidParams)
	case p.Type == "" && hasDurationRange(p):
		t = models.TableWorkouts
	case t == models.TableWorkouts && hasValueRange(p):
		return "", fmt.Errorf("%w: value range does not apply to workout type %q; use a duration range", models.ErrInvalidParams, p.Type)
	case t == models.TableRecords && hasDurationRange(p):
		return "", fmt.Errorf("%w: duration range applies only to workout types", models.ErrInvalidParams)
	}
	if err := checkDates(p); err != nil {
		return "", err
	}
	return t, nil
}

func checkDates(p models.SearchParams) error {
	if p.DateFrom != nil && p.DateTo != nil && p.DateFrom.After(*p.DateTo) {
		return fmt.Errorf("%w: date_from is after date_to", models.ErrInvalidParams)
	}
	return nil
}

func hasValueRange(p models.SearchParams) bool {
	return p.ValueMin != nil || p.ValueMax != nil
}

func hasDurationRange(p models.SearchParams) bool {
	return p.DurationMin != nil || p.DurationMax != nil
}

// filters builds the predicate set for table t. Order is stable so rendered
// queries are deterministic.
func filters(t models.Table, p models.SearchParams) []Predicate {
	var fs []Predicate
	if p.Type != "" {
		fs = append(fs, Predicate{Column: "type", Cmp: Eq, Value: p.Type})
	}
	if p.SourceName != "" {
		fs = append(fs, Predicate{Column: "sourceName", Cmp: Eq, Value: p.SourceName})
	}
	if p.DateFrom != nil {
		fs = append(fs, Predicate{Column: "startDate", Cmp: Gte, Value: p.DateFrom.UTC()})
	}
	if p.DateTo != nil {
		fs = append(fs, Predicate{Column: "startDate", Cmp: Lte, Value: p.DateTo.UTC()})
	}

	lo, hi := p.ValueMin, p.ValueMax
	if t == models.TableWorkouts {
		lo, hi = p.DurationMin, p.DurationMax
	}
	col := models.NumericColumn(t)
	if lo != nil {
		fs = append(fs, Predicate{Column: col, Cmp: Gte, Value: *lo})
	}
	if hi != nil {
		fs = append(fs, Predicate{Column: col, Cmp: Lte, Value: *hi})
	}
	return fs
}

// timeLiteral formats t the way timestamp parameters are bound.
func timeLiteral(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.999999")
}
