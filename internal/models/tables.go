// ABOUTME: Logical table names, column layouts, and the type-to-table rule.
// ABOUTME: Shared by the ingestion path and the query path.
package models

import "strings"

// Table identifies one of the three logical destination tables.
type Table string

const (
	TableRecords      Table = "records"
	TableWorkouts     Table = "workouts"
	TableWorkoutStats Table = "workout_stats"
)

// AllTables lists the logical tables in a stable order.
var AllTables = []Table{TableRecords, TableWorkouts, TableWorkoutStats}

// WorkoutTypePrefix marks workout activity types (e.g. HKWorkoutActivityTypeRunning).
const WorkoutTypePrefix = "HKWorkoutActivityType"

// Unknown is the sentinel written for absent optional string attributes.
const Unknown = "unknown"

// ColumnKind is the storage type of a column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindTimestamp
	KindFloat
)

var columns = map[Table][]string{
	TableRecords: {
		"type", "sourceVersion", "sourceName", "device",
		"startDate", "endDate", "creationDate",
		"unit", "value", "textValue",
	},
	TableWorkouts: {
		"workoutId", "type", "duration", "durationUnit", "sourceName",
		"startDate", "endDate", "creationDate",
	},
	TableWorkoutStats: {
		"workoutId", "type", "startDate", "endDate",
		"sum", "average", "minimum", "maximum", "unit",
	},
}

var columnKinds = map[string]ColumnKind{
	"startDate":    KindTimestamp,
	"endDate":      KindTimestamp,
	"creationDate": KindTimestamp,
	"value":        KindFloat,
	"duration":     KindFloat,
	"sum":          KindFloat,
	"average":      KindFloat,
	"minimum":      KindFloat,
	"maximum":      KindFloat,
}

// Columns returns the canonical column order for a table.
// The returned slice is a copy and may be modified by the caller.
func Columns(t Table) []string {
	return append([]string(nil), columns[t]...)
}

// KindOf returns the storage kind of a column name.
func KindOf(column string) ColumnKind {
	return columnKinds[column]
}

// IsValid reports whether t names a logical table.
func (t Table) IsValid() bool {
	_, ok := columns[t]
	return ok
}

// TableForType resolves a record or workout type string to the table it lives in.
// Workout activity types go to workouts; everything else, including "", goes to records.
func TableForType(recordType string) Table {
	if strings.HasPrefix(recordType, WorkoutTypePrefix) {
		return TableWorkouts
	}
	return TableRecords
}

// NumericColumn returns the column range filters and aggregates bind to.
func NumericColumn(t Table) string {
	if t == TableWorkouts {
		return "duration"
	}
	return "value"
}

// UnitColumn returns the column that carries the unit of NumericColumn.
func UnitColumn(t Table) string {
	if t == TableWorkouts {
		return "durationUnit"
	}
	return "unit"
}
