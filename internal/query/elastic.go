// ABOUTME: Renders plans as search-engine query bodies and reshapes responses.
// ABOUTME: Aggregation buckets are flattened to the same keys as the SQL path.
package query

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/harperreed/healthx/internal/models"
)

// DateComponentsField mirrors startDate on every indexed document.
const DateComponentsField = "dateComponents"

// maxBuckets bounds terms aggregations and the workout ID lookup.
const maxBuckets = 10000

// ElasticBody renders a single-table plan as a search request body.
// Summary plans must be rendered per part; workout statistics use
// ElasticWorkoutIDsBody and ElasticStatsForWorkoutsBody.
func ElasticBody(p *Plan) (map[string]any, error) {
	body := map[string]any{"query": elasticQuery(p.Filters)}
	switch p.Op {
	case OpSearch, OpValueSearch:
		body["size"] = p.Limit
		body["sort"] = newestFirst(p.Table)

	case OpSummary:
		if len(p.Parts) > 0 {
			return nil, fmt.Errorf("%w: summary must be rendered per table", models.ErrInvalidParams)
		}
		body["size"] = 0
		body["aggs"] = map[string]any{
			"types": map[string]any{
				"terms": map[string]any{
					"field": "type",
					"size":  maxBuckets,
					"order": []any{map[string]any{"_count": "desc"}, map[string]any{"_key": "asc"}},
				},
			},
		}

	case OpStatistics:
		body["size"] = 0
		body["aggs"] = map[string]any{
			"types": termsAgg("type", map[string]any{
				"units": termsAgg(models.UnitColumn(p.Table), statsAgg(models.NumericColumn(p.Table))),
			}),
		}

	case OpTrend:
		if _, err := models.ParseInterval(string(p.Interval)); err != nil {
			return nil, err
		}
		body["size"] = 0
		body["aggs"] = map[string]any{
			"types": termsAgg("type", map[string]any{
				"histogram": map[string]any{
					"date_histogram": map[string]any{
						"field":             "startDate",
						"calendar_interval": string(p.Interval),
						"min_doc_count":     1,
					},
					"aggs": statsAgg(models.NumericColumn(p.Table)),
				},
			}),
		}

	default:
		return nil, fmt.Errorf("%w: operation %q has no single-request body", models.ErrInvalidParams, p.Op)
	}
	return body, nil
}

// ElasticWorkoutIDsBody selects the IDs of workouts matching a workout-statistics plan.
func ElasticWorkoutIDsBody(p *Plan) map[string]any {
	return map[string]any{
		"query":   elasticQuery(p.Filters),
		"size":    maxBuckets,
		"_source": []string{"workoutId"},
		"sort":    newestFirst(models.TableWorkouts),
	}
}

// ElasticStatsForWorkoutsBody selects the statistics of the given workouts.
func ElasticStatsForWorkoutsBody(p *Plan, ids []string) map[string]any {
	return map[string]any{
		"query": map[string]any{"bool": map[string]any{
			"filter": []any{map[string]any{"terms": map[string]any{"workoutId": ids}}},
		}},
		"size": p.Limit,
		"sort": newestFirst(models.TableWorkoutStats),
	}
}

func newestFirst(t models.Table) []any {
	keys := []any{map[string]any{"startDate": map[string]any{"order": "desc"}}}
	for _, c := range tieBreakers[t] {
		keys = append(keys, map[string]any{c: map[string]any{"order": "asc"}})
	}
	return keys
}

func termsAgg(field string, sub map[string]any) map[string]any {
	return map[string]any{
		"terms": map[string]any{"field": field, "size": maxBuckets, "order": map[string]any{"_key": "asc"}},
		"aggs":  sub,
	}
}

func statsAgg(field string) map[string]any {
	return map[string]any{"stats": map[string]any{"stats": map[string]any{"field": field}}}
}

// elasticQuery turns predicates into a bool filter. Date ranges go through
// the denormalized dateComponents field.
func elasticQuery(preds []Predicate) map[string]any {
	if len(preds) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	clauses := make([]any, 0, len(preds))
	for _, pr := range preds {
		field := pr.Column
		value := pr.Value
		if t, ok := value.(time.Time); ok {
			field = DateComponentsField
			value = t.UTC().Format(time.RFC3339Nano)
		}
		switch pr.Cmp {
		case Eq:
			clauses = append(clauses, map[string]any{"term": map[string]any{field: value}})
		case Gte:
			clauses = append(clauses, map[string]any{"range": map[string]any{field: map[string]any{"gte": value}}})
		case Lte:
			clauses = append(clauses, map[string]any{"range": map[string]any{field: map[string]any{"lte": value}}})
		}
	}
	return map[string]any{"bool": map[string]any{"filter": clauses}}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Types struct {
			Buckets []typeBucket `json:"buckets"`
		} `json:"types"`
	} `json:"aggregations"`
}

type typeBucket struct {
	Key      string      `json:"key"`
	DocCount json.Number `json:"doc_count"`
	Units    struct {
		Buckets []struct {
			Key   string     `json:"key"`
			Stats statsValue `json:"stats"`
		} `json:"buckets"`
	} `json:"units"`
	Histogram struct {
		Buckets []struct {
			Key   json.Number `json:"key"`
			Stats statsValue  `json:"stats"`
		} `json:"buckets"`
	} `json:"histogram"`
}

type statsValue struct {
	Count json.Number `json:"count"`
	Min   *float64    `json:"min"`
	Max   *float64    `json:"max"`
	Avg   *float64    `json:"avg"`
	Sum   *float64    `json:"sum"`
}

func (s statsValue) into(row Row) {
	row["count"] = toInt64(s.Count)
	row["average"] = deref(s.Avg)
	row["sum"] = deref(s.Sum)
	row["min"] = deref(s.Min)
	row["max"] = deref(s.Max)
}

// DecodeElastic reshapes a search response for p into flat rows.
func DecodeElastic(p *Plan, r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var resp searchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	rows := []Row{}
	switch p.Op {
	case OpSearch, OpValueSearch, OpWorkoutStats:
		for _, h := range resp.Hits.Hits {
			rows = append(rows, ProjectDocument(p.Columns, h.Source))
		}

	case OpSummary:
		for _, b := range resp.Aggregations.Types.Buckets {
			rows = append(rows, Row{"table": string(p.Table), "type": b.Key, "count": toInt64(b.DocCount)})
		}

	case OpStatistics:
		for _, tb := range resp.Aggregations.Types.Buckets {
			for _, ub := range tb.Units.Buckets {
				row := Row{"type": tb.Key, "unit": ub.Key}
				ub.Stats.into(row)
				rows = append(rows, row)
			}
		}

	case OpTrend:
		for _, tb := range resp.Aggregations.Types.Buckets {
			for _, db := range tb.Histogram.Buckets {
				ms, err := db.Key.Int64()
				if err != nil {
					return nil, fmt.Errorf("decode bucket key %q: %w", db.Key, err)
				}
				row := Row{"type": tb.Key, "bucket": NormalizeValue(time.UnixMilli(ms))}
				db.Stats.into(row)
				rows = append(rows, row)
			}
		}
		slices.SortStableFunc(rows, func(a, b Row) int {
			if c := strings.Compare(a["bucket"].(string), b["bucket"].(string)); c != 0 {
				return c
			}
			return strings.Compare(a["type"].(string), b["type"].(string))
		})

	default:
		return nil, fmt.Errorf("%w: unknown operation %q", models.ErrInvalidParams, p.Op)
	}
	return rows, nil
}

// DecodeWorkoutIDs extracts workoutId values from a search response.
func DecodeWorkoutIDs(r io.Reader) ([]string, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		if id, ok := h.Source["workoutId"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ProjectDocument maps a stored document onto cols, coercing each field to
// the column's kind so hits look like relational rows.
func ProjectDocument(cols []string, src map[string]any) Row {
	row := make(Row, len(cols))
	for _, c := range cols {
		v := src[c]
		switch models.KindOf(c) {
		case models.KindTimestamp:
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					v = t
				}
			}
		case models.KindFloat:
			v = toFloat64(v)
		}
		row[c] = NormalizeValue(v)
	}
	return row
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
