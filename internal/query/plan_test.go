// ABOUTME: Tests for table resolution, predicate building, and request validation.
// ABOUTME: Backend rendering is covered in sql_test.go and elastic_test.go.
package query

import (
	"errors"
	"testing"
	"time"

	"github.com/harperreed/healthx/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestSearchResolvesTable(t *testing.T) {
	tests := []struct {
		typ     string
		table   models.Table
		numeric string
	}{
		{"HKQuantityTypeIdentifierStepCount", models.TableRecords, "value"},
		{"HKWorkoutActivityTypeRunning", models.TableWorkouts, "duration"},
		{"", models.TableRecords, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			p := models.SearchParams{Type: tt.typ}
			if tt.table == models.TableWorkouts {
				p.DurationMin = f64(10)
			} else {
				p.ValueMin = f64(10)
			}
			plan, err := Search(p)
			require.NoError(t, err)
			assert.Equal(t, tt.table, plan.Table)
			last := plan.Filters[len(plan.Filters)-1]
			assert.Equal(t, tt.numeric, last.Column)
			assert.Equal(t, Gte, last.Cmp)
			assert.Equal(t, models.Columns(tt.table), plan.Columns)
		})
	}
}

func TestSearchDefaults(t *testing.T) {
	plan, err := Search(models.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLimit, plan.Limit)
	assert.Empty(t, plan.Filters)

	plan, err = Search(models.SearchParams{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Limit)
}

func TestRangeBoundToWrongTable(t *testing.T) {
	_, err := Search(models.SearchParams{Type: "HKWorkoutActivityTypeRunning", ValueMin: f64(1)})
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = Statistics(models.SearchParams{Type: "HKQuantityTypeIdentifierHeartRate", DurationMax: f64(1)})
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = Search(models.SearchParams{DurationMax: f64(1), ValueMin: f64(1)})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestTypelessDurationRangeSelectsWorkouts(t *testing.T) {
	p := models.SearchParams{DurationMin: f64(30)}

	search, err := Search(p)
	require.NoError(t, err)
	assert.Equal(t, models.TableWorkouts, search.Table)
	assert.Equal(t, []Predicate{{"duration", Gte, 30.0}}, search.Filters)

	stats, err := Statistics(p)
	require.NoError(t, err)
	assert.Equal(t, models.TableWorkouts, stats.Table)

	trend, err := Trend(p, "week")
	require.NoError(t, err)
	assert.Equal(t, models.TableWorkouts, trend.Table)

	summary, err := Summary(p)
	require.NoError(t, err)
	require.Len(t, summary.Parts, 1)
	assert.Equal(t, search.Table, summary.Parts[0].Table, "summary and search must agree on the table")
}

func TestInvertedDateRange(t *testing.T) {
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Search(models.SearchParams{DateFrom: &from, DateTo: &to})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestFiltersOrderAndValues(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, loc)
	plan, err := Search(models.SearchParams{
		Type:       "HKQuantityTypeIdentifierHeartRate",
		SourceName: "Watch",
		DateFrom:   &from,
		DateTo:     &to,
		ValueMin:   f64(65),
		ValueMax:   f64(90),
	})
	require.NoError(t, err)

	require.Len(t, plan.Filters, 6)
	assert.Equal(t, Predicate{"type", Eq, "HKQuantityTypeIdentifierHeartRate"}, plan.Filters[0])
	assert.Equal(t, Predicate{"sourceName", Eq, "Watch"}, plan.Filters[1])
	assert.Equal(t, "startDate", plan.Filters[2].Column)
	assert.Equal(t, time.UTC, plan.Filters[2].Value.(time.Time).Location())
	assert.Equal(t, Predicate{"value", Gte, 65.0}, plan.Filters[4])
	assert.Equal(t, Predicate{"value", Lte, 90.0}, plan.Filters[5])
}

func TestTrendRejectsIntervalFirst(t *testing.T) {
	// The bad range would also fail, but the interval is checked first.
	_, err := Trend(models.SearchParams{Type: "HKWorkoutActivityTypeRunning", ValueMin: f64(1)}, "fortnight")
	assert.True(t, errors.Is(err, models.ErrInvalidInterval))

	plan, err := Trend(models.SearchParams{Type: "HKQuantityTypeIdentifierStepCount"}, "month")
	require.NoError(t, err)
	assert.Equal(t, models.IntervalMonth, plan.Interval)
	assert.Equal(t, TrendColumns, plan.Columns)
}

func TestValueSearch(t *testing.T) {
	plan, err := ValueSearch(models.SearchParams{Type: "HKCategoryTypeIdentifierSleepAnalysis"}, "HKCategoryValueSleepAnalysisAsleep")
	require.NoError(t, err)
	assert.Equal(t, Predicate{"textValue", Eq, "HKCategoryValueSleepAnalysisAsleep"}, plan.Filters[len(plan.Filters)-1])

	plan, err = ValueSearch(models.SearchParams{Type: "HKWorkoutActivityTypeRunning"}, "45.5")
	require.NoError(t, err)
	assert.Equal(t, Predicate{"duration", Eq, 45.5}, plan.Filters[len(plan.Filters)-1])

	_, err = ValueSearch(models.SearchParams{Type: "HKWorkoutActivityTypeRunning"}, "long")
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = ValueSearch(models.SearchParams{}, "")
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestSummaryParts(t *testing.T) {
	tests := []struct {
		name   string
		params models.SearchParams
		want   []models.Table
	}{
		{"all", models.SearchParams{}, []models.Table{models.TableRecords, models.TableWorkouts}},
		{"record type", models.SearchParams{Type: "HKQuantityTypeIdentifierStepCount"}, []models.Table{models.TableRecords}},
		{"workout type", models.SearchParams{Type: "HKWorkoutActivityTypeYoga"}, []models.Table{models.TableWorkouts}},
		{"value range", models.SearchParams{ValueMin: f64(1)}, []models.Table{models.TableRecords}},
		{"duration range", models.SearchParams{DurationMin: f64(1)}, []models.Table{models.TableWorkouts}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Summary(tt.params)
			require.NoError(t, err)
			var got []models.Table
			for _, part := range plan.Parts {
				got = append(got, part.Table)
				assert.Equal(t, OpSummary, part.Op)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Summary(models.SearchParams{ValueMin: f64(1), DurationMin: f64(1)})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestWorkoutStatsPlan(t *testing.T) {
	plan, err := WorkoutStats(models.SearchParams{Type: "HKWorkoutActivityTypeRunning", DurationMin: f64(30)})
	require.NoError(t, err)
	assert.Equal(t, models.TableWorkoutStats, plan.Table)
	assert.Equal(t, models.TableWorkouts, plan.FilterTable())
	assert.Equal(t, Predicate{"duration", Gte, 30.0}, plan.Filters[1])

	_, err = WorkoutStats(models.SearchParams{Type: "HKQuantityTypeIdentifierStepCount"})
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = WorkoutStats(models.SearchParams{ValueMax: f64(3)})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		got, err := ParseOperation(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
	_, err := ParseOperation("drop_tables")
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}
