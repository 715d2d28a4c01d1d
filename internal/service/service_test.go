// ABOUTME: Tests for request validation and structured failures.
// ABOUTME: A recording fake stands in for the backend.
package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeQuerier struct {
	plans []*query.Plan
	rows  []query.Row
	err   error
}

func (f *fakeQuerier) Name() string { return "fake" }

func (f *fakeQuerier) Execute(_ context.Context, p *query.Plan) ([]query.Row, error) {
	f.plans = append(f.plans, p)
	return f.rows, f.err
}

func (f *fakeQuerier) Close() error { return nil }

func ptr(v float64) *float64 { return &v }

func TestExecuteReturnsRows(t *testing.T) {
	fq := &fakeQuerier{rows: []query.Row{{"type": "HKQuantityTypeIdentifierStepCount", "count": int64(3)}}}
	svc := New(fq, zaptest.NewLogger(t))

	resp := svc.Execute(context.Background(), Request{Operation: "summary", Type: "HKQuantityTypeIdentifierStepCount"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "fake", resp.Backend)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, fq.plans, 1)
	assert.Equal(t, query.OpSummary, fq.plans[0].Op)
}

func TestExecuteEmptyResultIsNotNil(t *testing.T) {
	svc := New(&fakeQuerier{}, zaptest.NewLogger(t))
	resp := svc.Execute(context.Background(), Request{Operation: "search"})
	require.Nil(t, resp.Error)
	assert.NotNil(t, resp.Rows)
	assert.Zero(t, resp.Count)
}

func TestInvalidRequestsNeverReachBackend(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		kind string
	}{
		{"fortnight", Request{Operation: "trend", Interval: "fortnight"}, "InvalidInterval"},
		{"unknown operation", Request{Operation: "drop_tables"}, "InvalidParams"},
		{"bad date", Request{Operation: "search", DateFrom: "last tuesday"}, "InvalidParams"},
		{"inverted dates", Request{Operation: "search", DateFrom: "2024-02-01", DateTo: "2024-01-01"}, "InvalidParams"},
		{"value range on workouts", Request{Operation: "search", Type: "HKWorkoutActivityTypeRunning", ValueMin: ptr(1)}, "InvalidParams"},
		{"empty value", Request{Operation: "value_search"}, "InvalidParams"},
		{"negative limit", Request{Operation: "search", Limit: -1}, "InvalidParams"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fq := &fakeQuerier{}
			resp := New(fq, zaptest.NewLogger(t)).Execute(context.Background(), tc.req)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.kind, resp.Error.Kind)
			assert.Empty(t, fq.plans)
			assert.NotNil(t, resp.Rows)
		})
	}
}

func TestBackendFailureIsStructured(t *testing.T) {
	fq := &fakeQuerier{err: fmt.Errorf("%w: duckdb: connection refused", models.ErrBackendUnavailable)}
	resp := New(fq, zaptest.NewLogger(t)).Execute(context.Background(), Request{Operation: "statistics"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BackendUnavailable", resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestParamsParsesDateBounds(t *testing.T) {
	p, err := Request{DateFrom: "2024-01-01", DateTo: "2024-01-31", Limit: 5}.Params()
	require.NoError(t, err)
	require.NotNil(t, p.DateFrom)
	require.NotNil(t, p.DateTo)
	assert.Equal(t, "2024-01-31T23:59:59.999999Z", p.DateTo.Format("2006-01-02T15:04:05.999999Z07:00"))
	assert.Equal(t, 5, p.GetLimit())
}

func TestBuildPlanCoversOperations(t *testing.T) {
	for _, op := range query.Operations {
		req := Request{Operation: string(op), Interval: "month", Value: "10"}
		if op == query.OpWorkoutStats {
			req.Type = "HKWorkoutActivityTypeRunning"
		}
		plan, err := BuildPlan(req)
		require.NoError(t, err, op)
		assert.Equal(t, op, plan.Op)
	}
}
