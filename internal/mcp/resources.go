// ABOUTME: MCP resource implementations for the health query path.
// ABOUTME: Provides healthx://summary and healthx://tables resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"github.com/harperreed/healthx/internal/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	summaryURI = "healthx://summary"
	tablesURI  = "healthx://tables"
)

func (s *Server) registerResources() {
	// healthx://summary - row counts per type across records and workouts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "Health Data Summary",
		Description: "Row counts per type in the records and workouts tables",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)

	// healthx://tables - logical tables and their columns
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         tablesURI,
		Name:        "Health Data Tables",
		Description: "The logical tables and their column layouts",
		MIMEType:    "application/json",
	}, s.handleTablesResource)
}

// Resource handlers

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	resp := s.svc.Execute(ctx, service.Request{Operation: string(query.OpSummary)})
	if resp.Error != nil {
		return nil, fmt.Errorf("failed to summarize: %s", resp.Error.Message)
	}
	return jsonResource(summaryURI, resp.Rows)
}

func (s *Server) handleTablesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	tables := make(map[string][]string, len(models.AllTables))
	for _, t := range models.AllTables {
		tables[string(t)] = models.Columns(t)
	}
	return jsonResource(tablesURI, tables)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
