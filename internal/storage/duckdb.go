// ABOUTME: Embedded analytical database backend built on DuckDB.
// ABOUTME: Batches are bulk-inserted through the native appender API.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/harperreed/healthx/internal/models"
	"go.uber.org/zap"
)

// DuckDB is the Sink for a DuckDB database file.
type DuckDB struct {
	path      string
	log       *zap.Logger
	connector *duckdb.Connector
	db        *sql.DB
	conn      driver.Conn
	appenders map[models.Table]*duckdb.Appender
}

var _ Sink = (*DuckDB)(nil)

// OpenDuckDB opens or creates the database file at path for ingestion.
func OpenDuckDB(path string, log *zap.Logger) (*DuckDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open duckdb %s: %v", models.ErrBackendUnavailable, path, err)
	}
	conn, err := connector.Connect(context.Background())
	if err != nil {
		_ = connector.Close()
		return nil, fmt.Errorf("%w: connect duckdb: %v", models.ErrBackendUnavailable, err)
	}

	return &DuckDB{
		path:      path,
		log:       log,
		connector: connector,
		db:        sql.OpenDB(connector),
		conn:      conn,
		appenders: make(map[models.Table]*duckdb.Appender),
	}, nil
}

func (d *DuckDB) Name() string { return string(BackendDuckDB) }

// EnsureSchema creates the three tables if absent.
func (d *DuckDB) EnsureSchema(ctx context.Context) error {
	for _, t := range models.AllTables {
		if _, err := d.db.ExecContext(ctx, createTableSQL(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t, err)
		}
	}
	return nil
}

// Reset drops all three tables.
func (d *DuckDB) Reset(ctx context.Context) error {
	if err := d.closeAppenders(); err != nil {
		return err
	}
	for _, t := range models.AllTables {
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+string(t)); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return nil
}

// LoadBatch appends the batch and flushes the appender so the batch is
// committed before the next one is produced.
func (d *DuckDB) LoadBatch(ctx context.Context, b models.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if !slices.Equal(b.ColumnNames(), models.Columns(b.Table)) {
		return fmt.Errorf("%w: %s batch columns %v", models.ErrSchemaMismatch, b.Table, b.ColumnNames())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	app, err := d.appender(b.Table)
	if err != nil {
		return err
	}
	for _, row := range b.Rows {
		if err := app.AppendRow(driverValues(row.Values())...); err != nil {
			return fmt.Errorf("append %s row: %w", b.Table, err)
		}
	}
	if err := app.Flush(); err != nil {
		return fmt.Errorf("flush %s appender: %w", b.Table, err)
	}
	return nil
}

// Finalize closes the appenders and checkpoints the file.
func (d *DuckDB) Finalize(ctx context.Context) error {
	if err := d.closeAppenders(); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	d.log.Info("duckdb finalized", zap.String("path", d.path))
	return nil
}

// Abort drops pending appender state. Rows already flushed stay in the file.
func (d *DuckDB) Abort(ctx context.Context) error {
	return d.closeAppenders()
}

// Close releases the connection and database handle.
func (d *DuckDB) Close() error {
	errs := []error{d.closeAppenders()}
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	if d.connector != nil {
		errs = append(errs, d.connector.Close())
	}
	return errors.Join(errs...)
}

func (d *DuckDB) appender(t models.Table) (*duckdb.Appender, error) {
	if app, ok := d.appenders[t]; ok {
		return app, nil
	}
	app, err := duckdb.NewAppenderFromConn(d.conn, "", string(t))
	if err != nil {
		return nil, fmt.Errorf("create %s appender: %w", t, err)
	}
	d.appenders[t] = app
	return app, nil
}

func (d *DuckDB) closeAppenders() error {
	var errs []error
	for t, app := range d.appenders {
		if err := app.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s appender: %w", t, err))
		}
		delete(d.appenders, t)
	}
	return errors.Join(errs...)
}

func driverValues(vals []any) []driver.Value {
	out := make([]driver.Value, len(vals))
	for i, v := range vals {
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		out[i] = v
	}
	return out
}

// OpenDuckDBQuerier opens an existing database file read-only.
func OpenDuckDBQuerier(path string, log *zap.Logger) (*SQLQuerier, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}
	connector, err := duckdb.NewConnector(path+"?access_mode=READ_ONLY", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open duckdb %s: %v", models.ErrBackendUnavailable, path, err)
	}
	return newSQLQuerier(string(BackendDuckDB), connector, log), nil
}
