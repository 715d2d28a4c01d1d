// ABOUTME: MCP tool implementations for the health query operations and XML reads.
// ABOUTME: Each tool maps its input to a service request or stream; failures come back as values.
package mcp

import (
	"context"
	"fmt"

	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"github.com/harperreed/healthx/internal/service"
	"github.com/harperreed/healthx/internal/xmlstream"
	"go.uber.org/zap"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// get_health_summary
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_health_summary",
		Description: "Count rows per type in the records and workouts tables",
	}, s.handleSummary)

	// search_health_records
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_health_records",
		Description: "Search records or workouts, newest first. Workout types (HKWorkoutActivityType...) search workouts",
	}, s.handleSearch)

	// get_statistics_by_type
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_statistics_by_type",
		Description: "Count, average, sum, min, and max of value (or duration for workouts) per type and unit",
	}, s.handleStatistics)

	// get_trend_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_trend_data",
		Description: "Aggregate values per type over day, week, month, or year buckets, oldest bucket first",
	}, s.handleTrend)

	// search_values
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_values",
		Description: "Find records whose raw value text equals the given value, or workouts with that duration",
	}, s.handleValues)

	// get_workout_statistics
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_workout_statistics",
		Description: "Statistics (energy, distance, heart rate) recorded during workouts matching the filters",
	}, s.handleWorkoutStats)

	// get_xml_structure
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_xml_structure",
		Description: "Stream the export document and list its size, element tags, record types, workout types, and sources without ingesting it",
	}, s.handleXMLStructure)

	// search_xml_content
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_xml_content",
		Description: "Find Record and Workout elements in the export document with any attribute containing the query, ignoring case",
	}, s.handleXMLSearch)

	// get_xml_by_type
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_xml_by_type",
		Description: "Read Record elements of one type (or Workout elements of one HKWorkoutActivityType) straight from the export document",
	}, s.handleXMLByType)
}

// Tool input types

type filterInput struct {
	Type        string   `json:"type,omitempty" jsonschema:"record or workout type, e.g. HKQuantityTypeIdentifierStepCount"`
	SourceName  string   `json:"source_name,omitempty" jsonschema:"exact source app or device name"`
	DateFrom    string   `json:"date_from,omitempty" jsonschema:"inclusive start date (YYYY-MM-DD or RFC 3339)"`
	DateTo      string   `json:"date_to,omitempty" jsonschema:"inclusive end date (YYYY-MM-DD or RFC 3339)"`
	ValueMin    *float64 `json:"value_min,omitempty" jsonschema:"minimum value for records"`
	ValueMax    *float64 `json:"value_max,omitempty" jsonschema:"maximum value for records"`
	DurationMin *float64 `json:"duration_min,omitempty" jsonschema:"minimum duration for workouts"`
	DurationMax *float64 `json:"duration_max,omitempty" jsonschema:"maximum duration for workouts"`
	Limit       int      `json:"limit,omitempty" jsonschema:"max results (default 10)"`
}

type trendInput struct {
	Interval   string `json:"interval" jsonschema:"bucket width: day, week, month, or year"`
	Type       string `json:"type,omitempty" jsonschema:"record or workout type"`
	SourceName string `json:"source_name,omitempty" jsonschema:"exact source app or device name"`
	DateFrom   string `json:"date_from,omitempty" jsonschema:"inclusive start date (YYYY-MM-DD or RFC 3339)"`
	DateTo     string `json:"date_to,omitempty" jsonschema:"inclusive end date (YYYY-MM-DD or RFC 3339)"`
}

type valuesInput struct {
	Value      string `json:"value" jsonschema:"exact value text to look for"`
	Type       string `json:"type,omitempty" jsonschema:"record or workout type"`
	SourceName string `json:"source_name,omitempty" jsonschema:"exact source app or device name"`
	DateFrom   string `json:"date_from,omitempty" jsonschema:"inclusive start date (YYYY-MM-DD or RFC 3339)"`
	DateTo     string `json:"date_to,omitempty" jsonschema:"inclusive end date (YYYY-MM-DD or RFC 3339)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"max results (default 10)"`
}

type xmlStructureInput struct{}

type xmlSearchInput struct {
	Query      string `json:"query,omitempty" jsonschema:"text to look for in any attribute value, ignoring case"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"max elements to return (default 50)"`
}

type xmlByTypeInput struct {
	RecordType string `json:"record_type" jsonschema:"record type such as HKQuantityTypeIdentifierHeartRate, or a workout type"`
	Limit      int    `json:"limit,omitempty" jsonschema:"max elements to return (default 20)"`
}

// xmlElements is the output of the element-returning XML tools.
type xmlElements struct {
	Source   string              `json:"source"`
	Count    int                 `json:"count"`
	Elements []xmlstream.Element `json:"elements"`
}

func (in filterInput) request(op query.Operation) service.Request {
	return service.Request{
		Operation:   string(op),
		Type:        in.Type,
		SourceName:  in.SourceName,
		DateFrom:    in.DateFrom,
		DateTo:      in.DateTo,
		ValueMin:    in.ValueMin,
		ValueMax:    in.ValueMax,
		DurationMin: in.DurationMin,
		DurationMax: in.DurationMax,
		Limit:       in.Limit,
	}
}

// Tool handlers

func (s *Server) handleSummary(ctx context.Context, req *mcp.CallToolRequest, input filterInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, input.request(query.OpSummary))
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input filterInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, input.request(query.OpSearch))
}

func (s *Server) handleStatistics(ctx context.Context, req *mcp.CallToolRequest, input filterInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, input.request(query.OpStatistics))
}

func (s *Server) handleWorkoutStats(ctx context.Context, req *mcp.CallToolRequest, input filterInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, input.request(query.OpWorkoutStats))
}

func (s *Server) handleTrend(ctx context.Context, req *mcp.CallToolRequest, input trendInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, service.Request{
		Operation:  string(query.OpTrend),
		Interval:   input.Interval,
		Type:       input.Type,
		SourceName: input.SourceName,
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
	})
}

func (s *Server) handleValues(ctx context.Context, req *mcp.CallToolRequest, input valuesInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, service.Request{
		Operation:  string(query.OpValueSearch),
		Value:      input.Value,
		Type:       input.Type,
		SourceName: input.SourceName,
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
		Limit:      input.Limit,
	})
}

func (s *Server) handleXMLStructure(ctx context.Context, req *mcp.CallToolRequest, input xmlStructureInput) (*mcp.CallToolResult, any, error) {
	structure, err := xmlstream.Analyze(s.source)
	if err != nil {
		return s.xmlFailure("analyze", err)
	}
	return nil, structure, nil
}

func (s *Server) handleXMLSearch(ctx context.Context, req *mcp.CallToolRequest, input xmlSearchInput) (*mcp.CallToolResult, any, error) {
	matches, err := xmlstream.Grep(s.source, input.Query, input.MaxResults)
	if err != nil {
		return s.xmlFailure("search", err)
	}
	return nil, elementsOutput(s.source, matches), nil
}

func (s *Server) handleXMLByType(ctx context.Context, req *mcp.CallToolRequest, input xmlByTypeInput) (*mcp.CallToolResult, any, error) {
	if input.RecordType == "" {
		return s.xmlFailure("read by type", fmt.Errorf("%w: record_type is required", models.ErrInvalidParams))
	}
	matches, err := xmlstream.ByType(s.source, input.RecordType, input.Limit)
	if err != nil {
		return s.xmlFailure("read by type", err)
	}
	return nil, elementsOutput(s.source, matches), nil
}

func elementsOutput(source string, els []xmlstream.Element) xmlElements {
	if els == nil {
		els = []xmlstream.Element{}
	}
	return xmlElements{Source: source, Count: len(els), Elements: els}
}

// xmlFailure reports a failed XML read the same way query failures are reported.
func (s *Server) xmlFailure(action string, err error) (*mcp.CallToolResult, any, error) {
	s.log.Warn("xml tool failed", zap.String("action", action), zap.String("source", s.source), zap.Error(err))
	return &mcp.CallToolResult{IsError: true}, service.ErrorInfo{Kind: models.ErrorKind(err), Message: err.Error()}, nil
}

// run executes req. Failures are reported in the response body with
// IsError set, never as a Go error, so one bad query cannot end the session.
func (s *Server) run(ctx context.Context, req service.Request) (*mcp.CallToolResult, any, error) {
	resp := s.svc.Execute(ctx, req)
	if resp.Error != nil {
		return &mcp.CallToolResult{IsError: true}, resp, nil
	}
	return nil, resp, nil
}
