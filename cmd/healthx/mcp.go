// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server over the configured backend and export document.
package main

import (
	"github.com/harperreed/healthx/internal/mcp"
	"github.com/harperreed/healthx/internal/service"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to query your ingested health data
through a standardized protocol. The server communicates via stdin/stdout;
logs go to stderr.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "healthx": {
        "command": "healthx",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  get_health_summary      Row counts per type
  search_health_records   Records or workouts, newest first
  get_statistics_by_type  Count, average, sum, min, max per type
  get_trend_data          Aggregates per day, week, month, or year
  search_values           Rows with an exact value
  get_workout_statistics  Statistics recorded during workouts
  get_xml_structure       Tags, types, and sources in the export document
  search_xml_content      Records and workouts mentioning a term
  get_xml_by_type         Records (or workouts) of one type from the export

The XML tools read the export document named by the source setting
(HEALTHX_SOURCE or "source" in config.json) directly, without ingesting it.

AVAILABLE RESOURCES:

  healthx://summary   Row counts per type
  healthx://tables    Table and column layout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		q, err := cfg.OpenQuerier(ctx, logger)
		if err != nil {
			return err
		}
		defer q.Close()

		server, err := mcp.NewServer(service.New(q, logger), cfg.GetSource(), logger, version)
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
