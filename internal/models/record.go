// ABOUTME: Normalized point-record row and the Row/Batch types used for transfer.
// ABOUTME: A Batch is one homogeneous group of rows destined for a single table.
package models

import "time"

// Row is a normalized, column-complete row of one logical table.
type Row interface {
	Table() Table
	// Values returns the row's values in Columns(Table()) order.
	Values() []any
}

// Record is one point measurement (a Record element).
type Record struct {
	Type          string
	SourceVersion string
	SourceName    string
	Device        string
	StartDate     time.Time
	EndDate       time.Time
	CreationDate  time.Time
	Unit          string
	Value         float64
	TextValue     string
}

func (r *Record) Table() Table { return TableRecords }

func (r *Record) Values() []any {
	return []any{
		r.Type, r.SourceVersion, r.SourceName, r.Device,
		r.StartDate, r.EndDate, r.CreationDate,
		r.Unit, r.Value, r.TextValue,
	}
}

// Batch is a bounded group of rows for one table.
// Columns names the column set the batch was produced with; nil means Columns(Table).
type Batch struct {
	Table   Table
	Columns []string
	Rows    []Row
}

// NewBatch returns a batch with the canonical column set of t.
func NewBatch(t Table, rows []Row) Batch {
	return Batch{Table: t, Columns: Columns(t), Rows: rows}
}

// ColumnNames returns b.Columns, falling back to the canonical layout.
func (b Batch) ColumnNames() []string {
	if len(b.Columns) == 0 {
		return Columns(b.Table)
	}
	return b.Columns
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Rows) }
