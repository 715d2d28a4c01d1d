// ABOUTME: Per-backend renderings of the three logical table layouts.
// ABOUTME: DuckDB DDL, search index mappings, and Arrow schemas all derive from models.
package storage

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
)

// createTableSQL returns the DuckDB DDL for t. Timestamps are stored as UTC.
func createTableSQL(t models.Table) string {
	cols := models.Columns(t)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%q %s NOT NULL", c, duckType(models.KindOf(c)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t, strings.Join(defs, ",\n\t"))
}

func duckType(k models.ColumnKind) string {
	switch k {
	case models.KindTimestamp:
		return "TIMESTAMP"
	case models.KindFloat:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

// indexMapping returns the search index mapping for t. Strings are exact-match
// keywords; dateComponents mirrors startDate for range queries.
func indexMapping(t models.Table) map[string]any {
	props := map[string]any{
		query.DateComponentsField: map[string]any{"type": "date"},
	}
	for _, c := range models.Columns(t) {
		var typ string
		switch models.KindOf(c) {
		case models.KindTimestamp:
			typ = "date"
		case models.KindFloat:
			typ = "double"
		default:
			typ = "keyword"
		}
		props[c] = map[string]any{"type": typ}
	}
	return map[string]any{
		"mappings": map[string]any{
			"dynamic":    "strict",
			"properties": props,
		},
	}
}

// arrowField returns the Arrow field for a column name.
func arrowField(c string) arrow.Field {
	var dt arrow.DataType
	switch models.KindOf(c) {
	case models.KindTimestamp:
		dt = &arrow.TimestampType{Unit: arrow.Microsecond}
	case models.KindFloat:
		dt = arrow.PrimitiveTypes.Float64
	default:
		dt = arrow.BinaryTypes.String
	}
	return arrow.Field{Name: c, Type: dt}
}

// arrowSchema returns a schema with cols in the given order.
func arrowSchema(cols []string) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrowField(c)
	}
	return arrow.NewSchema(fields, nil)
}
