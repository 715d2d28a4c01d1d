// ABOUTME: Operation boundary of the query path.
// ABOUTME: Turns requests into plans, runs them, and reports failures as values.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"github.com/harperreed/healthx/internal/storage"
	"go.uber.org/zap"
)

// Request is one query-path call. Dates are strings as supplied by the
// caller and are parsed here so bad input becomes a structured error.
type Request struct {
	Operation   string   `json:"operation" yaml:"operation"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	SourceName  string   `json:"source_name,omitempty" yaml:"source_name,omitempty"`
	DateFrom    string   `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo      string   `json:"date_to,omitempty" yaml:"date_to,omitempty"`
	ValueMin    *float64 `json:"value_min,omitempty" yaml:"value_min,omitempty"`
	ValueMax    *float64 `json:"value_max,omitempty" yaml:"value_max,omitempty"`
	DurationMin *float64 `json:"duration_min,omitempty" yaml:"duration_min,omitempty"`
	DurationMax *float64 `json:"duration_max,omitempty" yaml:"duration_max,omitempty"`
	Limit       int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	Interval    string   `json:"interval,omitempty" yaml:"interval,omitempty"`
	Value       string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// ErrorInfo is the caller-visible form of a failure.
type ErrorInfo struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Response carries either rows or an error, never a Go error.
type Response struct {
	Operation string      `json:"operation" yaml:"operation"`
	Backend   string      `json:"backend" yaml:"backend"`
	Count     int         `json:"count" yaml:"count"`
	Columns   []string    `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows      []query.Row `json:"rows" yaml:"rows"`
	Error     *ErrorInfo  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Service executes requests against one backend.
type Service struct {
	q   storage.Querier
	log *zap.Logger
}

// New returns a Service reading through q.
func New(q storage.Querier, log *zap.Logger) *Service {
	return &Service{q: q, log: log}
}

// Params parses the filter part of r.
func (r Request) Params() (models.SearchParams, error) {
	from, err := models.ParseDateBound(r.DateFrom, false)
	if err != nil {
		return models.SearchParams{}, err
	}
	to, err := models.ParseDateBound(r.DateTo, true)
	if err != nil {
		return models.SearchParams{}, err
	}
	if r.Limit < 0 {
		return models.SearchParams{}, fmt.Errorf("%w: negative limit %d", models.ErrInvalidParams, r.Limit)
	}
	return models.SearchParams{
		Type:        r.Type,
		SourceName:  r.SourceName,
		DateFrom:    from,
		DateTo:      to,
		ValueMin:    r.ValueMin,
		ValueMax:    r.ValueMax,
		DurationMin: r.DurationMin,
		DurationMax: r.DurationMax,
		Limit:       r.Limit,
	}, nil
}

// BuildPlan validates r and returns its plan without touching the backend.
func BuildPlan(r Request) (*query.Plan, error) {
	op, err := query.ParseOperation(r.Operation)
	if err != nil {
		return nil, err
	}
	p, err := r.Params()
	if err != nil {
		return nil, err
	}
	switch op {
	case query.OpSummary:
		return query.Summary(p)
	case query.OpSearch:
		return query.Search(p)
	case query.OpStatistics:
		return query.Statistics(p)
	case query.OpTrend:
		return query.Trend(p, r.Interval)
	case query.OpValueSearch:
		return query.ValueSearch(p, r.Value)
	case query.OpWorkoutStats:
		return query.WorkoutStats(p)
	}
	return nil, fmt.Errorf("%w: operation %q", models.ErrInvalidParams, r.Operation)
}

// Execute runs r. Invalid requests fail before any backend call.
func (s *Service) Execute(ctx context.Context, r Request) Response {
	resp := Response{Operation: r.Operation, Backend: s.q.Name(), Rows: []query.Row{}}

	plan, err := BuildPlan(r)
	if err != nil {
		return s.fail(resp, err)
	}

	resp.Columns = plan.Columns
	started := time.Now()
	rows, err := s.q.Execute(ctx, plan)
	if err != nil {
		return s.fail(resp, err)
	}
	if rows != nil {
		resp.Rows = rows
	}
	resp.Count = len(resp.Rows)
	s.log.Debug("query executed",
		zap.String("operation", r.Operation),
		zap.String("backend", resp.Backend),
		zap.Int("rows", resp.Count),
		zap.Duration("took", time.Since(started)),
	)
	return resp
}

func (s *Service) fail(resp Response, err error) Response {
	resp.Error = &ErrorInfo{Kind: models.ErrorKind(err), Message: err.Error()}
	s.log.Warn("query failed",
		zap.String("operation", resp.Operation),
		zap.String("kind", resp.Error.Kind),
		zap.Error(err),
	)
	return resp
}
