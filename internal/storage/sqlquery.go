// ABOUTME: Querier that executes rendered SQL plans through a DuckDB connector.
// ABOUTME: Serves both the database file backend and the columnar file backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"go.uber.org/zap"
)

// SQLQuerier runs query plans as parameterized SQL.
type SQLQuerier struct {
	name      string
	log       *zap.Logger
	connector *duckdb.Connector
	db        *sql.DB
}

var _ Querier = (*SQLQuerier)(nil)

func newSQLQuerier(name string, connector *duckdb.Connector, log *zap.Logger) *SQLQuerier {
	return &SQLQuerier{
		name:      name,
		log:       log,
		connector: connector,
		db:        sql.OpenDB(connector),
	}
}

func (q *SQLQuerier) Name() string { return q.name }

// Execute renders and runs plan. Render errors are returned as is;
// execution failures are wrapped as backend unavailability.
func (q *SQLQuerier) Execute(ctx context.Context, plan *query.Plan) ([]query.Row, error) {
	stmt, args, err := plan.SQL()
	if err != nil {
		return nil, err
	}
	q.log.Debug("executing query",
		zap.String("backend", q.name),
		zap.String("operation", string(plan.Op)),
		zap.String("sql", stmt),
		zap.Int("args", len(args)),
	)

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable(q.name, err)
	}
	defer rows.Close()

	out, err := query.ScanRows(rows)
	if err != nil {
		return nil, unavailable(q.name, err)
	}
	return out, nil
}

// Close releases the database handle and connector.
func (q *SQLQuerier) Close() error {
	return errors.Join(q.db.Close(), q.connector.Close())
}

func unavailable(backend string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", models.ErrBackendUnavailable, backend, err)
}
