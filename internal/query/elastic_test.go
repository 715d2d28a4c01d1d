// ABOUTME: Tests for search-engine bodies and response reshaping.
// ABOUTME: Responses are canned JSON in the engine's wire format.
package query

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/healthx/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestElasticSearchBody(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan, err := Search(models.SearchParams{
		Type:     "HKQuantityTypeIdentifierStepCount",
		DateFrom: &from,
		ValueMin: f64(65),
		Limit:    7,
	})
	require.NoError(t, err)

	body, err := ElasticBody(plan)
	require.NoError(t, err)
	got := renderJSON(t, body)

	assert.Contains(t, got, `{"term":{"type":"HKQuantityTypeIdentifierStepCount"}}`)
	assert.Contains(t, got, `{"range":{"dateComponents":{"gte":"2024-01-01T00:00:00Z"}}}`)
	assert.Contains(t, got, `{"range":{"value":{"gte":65}}}`)
	assert.Contains(t, got, `"sort":[{"startDate":{"order":"desc"}},{"type":{"order":"asc"}},{"sourceName":{"order":"asc"}},{"value":{"order":"asc"}}]`)
	assert.Contains(t, got, `"size":7`)
}

func TestElasticSortMatchesSQLOrder(t *testing.T) {
	tests := []struct {
		table models.Table
		body  func() map[string]any
	}{
		{models.TableWorkouts, func() map[string]any {
			plan, err := WorkoutStats(models.SearchParams{})
			require.NoError(t, err)
			return ElasticWorkoutIDsBody(plan)
		}},
		{models.TableWorkoutStats, func() map[string]any {
			plan, err := WorkoutStats(models.SearchParams{})
			require.NoError(t, err)
			return ElasticStatsForWorkoutsBody(plan, []string{"w-1"})
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			keys := tt.body()["sort"].([]any)
			require.Len(t, keys, 1+len(tieBreakers[tt.table]))
			assert.Equal(t, map[string]any{"startDate": map[string]any{"order": "desc"}}, keys[0])
			for i, col := range tieBreakers[tt.table] {
				assert.Equal(t, map[string]any{col: map[string]any{"order": "asc"}}, keys[i+1])
			}
		})
	}
}

func TestElasticMatchAll(t *testing.T) {
	plan, err := Search(models.SearchParams{})
	require.NoError(t, err)
	body, err := ElasticBody(plan)
	require.NoError(t, err)
	assert.Contains(t, renderJSON(t, body), `"query":{"match_all":{}}`)
}

func TestElasticSummaryMustBeSplit(t *testing.T) {
	plan, err := Summary(models.SearchParams{})
	require.NoError(t, err)
	_, err = ElasticBody(plan)
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	body, err := ElasticBody(plan.Parts[0])
	require.NoError(t, err)
	assert.Contains(t, renderJSON(t, body), `"size":0`)
}

func TestElasticTrendBody(t *testing.T) {
	plan, err := Trend(models.SearchParams{Type: "HKWorkoutActivityTypeRunning"}, "year")
	require.NoError(t, err)
	body, err := ElasticBody(plan)
	require.NoError(t, err)
	got := renderJSON(t, body)
	assert.Contains(t, got, `"calendar_interval":"year"`)
	assert.Contains(t, got, `"stats":{"field":"duration"}`)
}

func TestDecodeSearchHits(t *testing.T) {
	plan, err := Search(models.SearchParams{Type: "HKQuantityTypeIdentifierStepCount"})
	require.NoError(t, err)

	resp := `{"hits":{"hits":[{"_source":{
		"type":"HKQuantityTypeIdentifierStepCount","sourceVersion":"17","sourceName":"iPhone",
		"device":"unknown","startDate":"2024-03-01T08:00:00-08:00","endDate":"2024-03-01T08:05:00-08:00",
		"creationDate":"2024-03-01T08:06:00-08:00","unit":"count","value":20,"textValue":"20",
		"dateComponents":"2024-03-01T08:00:00-08:00"}}]}}`

	rows, err := DecodeElastic(plan, strings.NewReader(resp))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "2024-03-01T16:00:00Z", row["startDate"])
	assert.Equal(t, 20.0, row["value"])
	assert.Equal(t, "20", row["textValue"])
	assert.NotContains(t, row, "dateComponents")
	assert.Len(t, row, len(models.Columns(models.TableRecords)))
}

func TestDecodeSummary(t *testing.T) {
	plan, err := Summary(models.SearchParams{})
	require.NoError(t, err)
	resp := `{"aggregations":{"types":{"buckets":[
		{"key":"HKQuantityTypeIdentifierStepCount","doc_count":3},
		{"key":"HKQuantityTypeIdentifierHeartRate","doc_count":1}]}}}`

	rows, err := DecodeElastic(plan.Parts[0], strings.NewReader(resp))
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"table": "records", "type": "HKQuantityTypeIdentifierStepCount", "count": int64(3)},
		{"table": "records", "type": "HKQuantityTypeIdentifierHeartRate", "count": int64(1)},
	}, rows)
}

func TestDecodeStatistics(t *testing.T) {
	plan, err := Statistics(models.SearchParams{Type: "HKQuantityTypeIdentifierStepCount"})
	require.NoError(t, err)
	resp := `{"aggregations":{"types":{"buckets":[{"key":"HKQuantityTypeIdentifierStepCount","doc_count":3,
		"units":{"buckets":[{"key":"count","doc_count":3,
		"stats":{"count":3,"min":0.0,"max":20.0,"avg":10.0,"sum":30.0}}]}}]}}}`

	rows, err := DecodeElastic(plan, strings.NewReader(resp))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		"type": "HKQuantityTypeIdentifierStepCount", "unit": "count",
		"count": int64(3), "average": 10.0, "sum": 30.0, "min": 0.0, "max": 20.0,
	}, rows[0])
}

func TestDecodeTrendSortsByBucket(t *testing.T) {
	plan, err := Trend(models.SearchParams{}, "month")
	require.NoError(t, err)
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	resp := map[string]any{"aggregations": map[string]any{"types": map[string]any{"buckets": []any{
		map[string]any{"key": "B", "doc_count": 1, "histogram": map[string]any{"buckets": []any{
			map[string]any{"key": jan, "stats": map[string]any{"count": 1, "min": 1, "max": 1, "avg": 1, "sum": 1}},
		}}},
		map[string]any{"key": "A", "doc_count": 2, "histogram": map[string]any{"buckets": []any{
			map[string]any{"key": feb, "stats": map[string]any{"count": 1, "min": 2, "max": 2, "avg": 2, "sum": 2}},
			map[string]any{"key": jan, "stats": map[string]any{"count": 1, "min": 3, "max": 3, "avg": 3, "sum": 3}},
		}}},
	}}}}

	rows, err := DecodeElastic(plan, strings.NewReader(renderJSON(t, resp)))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var order []string
	for _, r := range rows {
		order = append(order, r["bucket"].(string)+" "+r["type"].(string))
	}
	assert.Equal(t, []string{
		"2024-01-01T00:00:00Z A",
		"2024-01-01T00:00:00Z B",
		"2024-02-01T00:00:00Z A",
	}, order)
}

func TestDecodeWorkoutIDs(t *testing.T) {
	ids, err := DecodeWorkoutIDs(strings.NewReader(`{"hits":{"hits":[
		{"_source":{"workoutId":"a"}},{"_source":{}},{"_source":{"workoutId":"b"}}]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestDecodeMalformedResponse(t *testing.T) {
	plan, err := Search(models.SearchParams{})
	require.NoError(t, err)
	_, err = DecodeElastic(plan, strings.NewReader("{not json"))
	assert.Error(t, err)
}
