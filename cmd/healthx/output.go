// ABOUTME: Output formatting shared by the query and inspection commands.
// ABOUTME: Renders results as aligned text, JSON, or YAML.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthx/internal/service"
	"gopkg.in/yaml.v3"
)

var flagFormat string

// writeOutput encodes v as JSON or YAML. Text output is command specific.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s (use text, json, or yaml)", format)
	}
}

// writeResponse prints a query response in the selected format.
func writeResponse(w io.Writer, format string, resp service.Response) error {
	if format != "text" {
		return writeOutput(w, format, resp)
	}
	if len(resp.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	widths := make([]int, len(resp.Columns))
	cells := make([][]string, len(resp.Rows))
	for i, col := range resp.Columns {
		widths[i] = len(col)
	}
	for r, row := range resp.Rows {
		cells[r] = make([]string, len(resp.Columns))
		for i, col := range resp.Columns {
			s := formatCell(row[col])
			cells[r][i] = s
			widths[i] = max(widths[i], len(s))
		}
	}

	bold := color.New(color.Bold)
	header := make([]string, len(resp.Columns))
	for i, col := range resp.Columns {
		header[i] = padRight(col, widths[i])
	}
	if _, err := bold.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " ")); err != nil {
		return err
	}
	for _, row := range cells {
		for i := range row {
			row[i] = padRight(row[i], widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(row, "  "), " ")); err != nil {
			return err
		}
	}
	faint := color.New(color.Faint)
	_, err := faint.Fprintf(w, "%d rows from %s\n", resp.Count, resp.Backend)
	return err
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:max(maxLen, 0)]
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "text", "output format: text, json, or yaml")
}
