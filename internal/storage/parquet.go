// ABOUTME: Columnar file backend writing one Parquet file per logical table.
// ABOUTME: Batches land as temporary segments that are concatenated at finalize.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"github.com/duckdb/duckdb-go/v2"
	"github.com/harperreed/healthx/internal/models"
	"go.uber.org/zap"
)

const rowGroupSize = 64 * 1024

// Parquet is the Sink for a directory of per-table Parquet files.
type Parquet struct {
	dir    string
	log    *zap.Logger
	mem    memory.Allocator
	seq    int
	tables map[models.Table]*parquetTable
}

// parquetTable tracks the segments of one table for the current run.
type parquetTable struct {
	columns  []string // order of the first batch seen
	segments []string
}

var _ Sink = (*Parquet)(nil)

// OpenParquet returns a sink writing into dir.
func OpenParquet(dir string, log *zap.Logger) *Parquet {
	return &Parquet{
		dir:    dir,
		log:    log,
		mem:    memory.NewGoAllocator(),
		tables: make(map[models.Table]*parquetTable),
	}
}

func (p *Parquet) Name() string { return string(BackendParquet) }

// TablePath returns the final file of table t in dir.
func TablePath(dir string, t models.Table) string {
	return filepath.Join(dir, string(t)+".parquet")
}

// EnsureSchema creates the output directory. Table files are written at Finalize.
func (p *Parquet) EnsureSchema(ctx context.Context) error {
	if err := os.MkdirAll(p.dir, 0750); err != nil {
		return fmt.Errorf("create parquet directory: %w", err)
	}
	return nil
}

// Reset removes table files left by a previous run.
func (p *Parquet) Reset(ctx context.Context) error {
	for _, t := range models.AllTables {
		if err := os.Remove(TablePath(p.dir, t)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", t, err)
		}
	}
	return nil
}

// LoadBatch writes b as a new segment. A batch whose column set differs from
// the first batch of its table fails with ErrSchemaMismatch and removes all
// segments written so far.
func (p *Parquet) LoadBatch(ctx context.Context, b models.Batch) error {
	cols := b.ColumnNames()
	if err := checkColumns(b.Table, cols); err != nil {
		p.removeSegments()
		return err
	}

	st, ok := p.tables[b.Table]
	if !ok {
		st = &parquetTable{columns: slices.Clone(cols)}
		p.tables[b.Table] = st
	} else if !sameColumnSet(st.columns, cols) {
		p.removeSegments()
		return fmt.Errorf("%w: %s batch columns %v differ from first batch %v",
			models.ErrSchemaMismatch, b.Table, cols, st.columns)
	}
	if b.Len() == 0 {
		return nil
	}

	p.seq++
	seg := filepath.Join(p.dir, fmt.Sprintf(".%s.seg-%06d.parquet", b.Table, p.seq))
	if err := p.writeSegment(seg, b, cols); err != nil {
		_ = os.Remove(seg)
		return fmt.Errorf("write %s segment: %w", b.Table, err)
	}
	st.segments = append(st.segments, seg)
	return nil
}

// Finalize concatenates each table's segments into its final file, in the
// column order of the first batch, then removes the segments. Tables that saw
// no rows get an empty file so every table exists after a run.
func (p *Parquet) Finalize(ctx context.Context) error {
	for _, t := range models.AllTables {
		cols := models.Columns(t)
		var segments []string
		if st, ok := p.tables[t]; ok {
			cols, segments = st.columns, st.segments
		}

		final := TablePath(p.dir, t)
		tmp := final + ".tmp"
		schema := arrowSchema(cols)
		err := writeParquetFile(tmp, schema, func(w *pqarrow.FileWriter) error {
			for _, seg := range segments {
				if err := p.appendSegment(ctx, w, schema, seg); err != nil {
					return fmt.Errorf("concatenate %s: %w", filepath.Base(seg), err)
				}
			}
			return nil
		})
		if err == nil {
			err = os.Rename(tmp, final)
		}
		if err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("finalize %s: %w", t, err)
		}

		for _, seg := range segments {
			if err := os.Remove(seg); err != nil && !errors.Is(err, os.ErrNotExist) {
				p.log.Warn("remove segment", zap.String("path", seg), zap.Error(err))
			}
		}
		p.log.Info("parquet table written",
			zap.String("table", string(t)),
			zap.String("path", final),
			zap.Int("segments", len(segments)),
		)
	}
	p.tables = make(map[models.Table]*parquetTable)
	return nil
}

// Abort removes every temporary segment and partial file of the run.
func (p *Parquet) Abort(ctx context.Context) error {
	p.removeSegments()
	for _, t := range models.AllTables {
		_ = os.Remove(TablePath(p.dir, t) + ".tmp")
	}
	return nil
}

func (p *Parquet) Close() error { return nil }

func (p *Parquet) removeSegments() {
	for _, st := range p.tables {
		for _, seg := range st.segments {
			if err := os.Remove(seg); err != nil && !errors.Is(err, os.ErrNotExist) {
				p.log.Warn("remove segment", zap.String("path", seg), zap.Error(err))
			}
		}
		st.segments = nil
	}
}

func (p *Parquet) writeSegment(path string, b models.Batch, cols []string) error {
	canonical := make(map[string]int)
	for i, c := range models.Columns(b.Table) {
		canonical[c] = i
	}

	schema := arrowSchema(cols)
	rb := array.NewRecordBuilder(p.mem, schema)
	defer rb.Release()

	for _, row := range b.Rows {
		vals := row.Values()
		for i, c := range cols {
			if err := appendValue(rb.Field(i), vals[canonical[c]]); err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
		}
	}
	rec := rb.NewRecord()
	defer rec.Release()

	return writeParquetFile(path, schema, func(w *pqarrow.FileWriter) error {
		return w.Write(rec)
	})
}

func (p *Parquet) appendSegment(ctx context.Context, w *pqarrow.FileWriter, schema *arrow.Schema, seg string) error {
	f, err := os.Open(seg)
	if err != nil {
		return err
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(p.mem), pqarrow.ArrowReadProperties{}, p.mem)
	if err != nil {
		return err
	}
	defer tbl.Release()

	cols := make([]arrow.Column, schema.NumFields())
	for i, field := range schema.Fields() {
		idx := tbl.Schema().FieldIndices(field.Name)
		if len(idx) != 1 {
			return fmt.Errorf("%w: segment lacks column %s", models.ErrSchemaMismatch, field.Name)
		}
		src := tbl.Column(idx[0])
		if !arrow.TypeEqual(src.DataType(), field.Type) {
			return fmt.Errorf("%w: column %s is %s, want %s", models.ErrSchemaMismatch, field.Name, src.DataType(), field.Type)
		}
		col := arrow.NewColumn(field, src.Data())
		defer col.Release()
		cols[i] = *col
	}

	out := array.NewTable(schema, cols, tbl.NumRows())
	defer out.Release()
	return w.WriteTable(out, rowGroupSize)
}

func writeParquetFile(path string, schema *arrow.Schema, write func(*pqarrow.FileWriter) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy("healthx"),
	)
	w, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func appendValue(b array.Builder, v any) error {
	switch fb := b.(type) {
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		fb.Append(s)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		fb.Append(f)
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		fb.Append(arrow.Timestamp(t.UnixMicro()))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// checkColumns rejects unknown or repeated column names for t.
func checkColumns(t models.Table, cols []string) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: unknown table %q", models.ErrSchemaMismatch, t)
	}
	known := models.Columns(t)
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !slices.Contains(known, c) || seen[c] {
			return fmt.Errorf("%w: %s has unexpected column %q", models.ErrSchemaMismatch, t, c)
		}
		seen[c] = true
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: %s batch has no columns", models.ErrSchemaMismatch, t)
	}
	return nil
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// OpenParquetQuerier serves queries over the table files in dir through
// read_parquet views in an in-memory DuckDB.
func OpenParquetQuerier(ctx context.Context, dir string, log *zap.Logger) (*SQLQuerier, error) {
	for _, t := range models.AllTables {
		if _, err := os.Stat(TablePath(dir, t)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, TablePath(dir, t))
			}
			return nil, fmt.Errorf("stat %s: %w", t, err)
		}
	}

	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open duckdb: %v", models.ErrBackendUnavailable, err)
	}
	q := newSQLQuerier(string(BackendParquet), connector, log)
	for _, t := range models.AllTables {
		path := strings.ReplaceAll(TablePath(dir, t), "'", "''")
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')", t, path)
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("%w: attach %s: %v", models.ErrBackendUnavailable, t, err)
		}
	}
	return q, nil
}
