// ABOUTME: Sink and Querier interfaces for the interchangeable storage backends.
// ABOUTME: Ingestion writes through a Sink; the query path reads through a Querier.
package storage

import (
	"context"

	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
)

// Backend names a storage engine.
type Backend string

const (
	BackendDuckDB        Backend = "duckdb"
	BackendElasticsearch Backend = "elasticsearch"
	BackendParquet       Backend = "parquet"
)

// Backends lists every supported engine.
var Backends = []Backend{BackendDuckDB, BackendElasticsearch, BackendParquet}

// Sink defines the write side of a backend. One Sink serves one ingestion run.
// A failed LoadBatch aborts the run; rows already committed are not rolled back.
type Sink interface {
	// Name returns the backend name for logs and metrics.
	Name() string
	// EnsureSchema creates the three logical tables if absent. It is idempotent.
	EnsureSchema(ctx context.Context) error
	// Reset drops existing tables so the run starts from an empty destination.
	Reset(ctx context.Context) error
	// LoadBatch appends every row of b to b.Table.
	LoadBatch(ctx context.Context, b models.Batch) error
	// Finalize performs backend-specific flush or compaction.
	Finalize(ctx context.Context) error
	// Abort releases run state after a failure, removing temporary artifacts.
	Abort(ctx context.Context) error
	Close() error
}

// Querier defines the read side of a backend. Execute is safe for
// concurrent use when the engine permits concurrent reads.
type Querier interface {
	Name() string
	Execute(ctx context.Context, plan *query.Plan) ([]query.Row, error)
	Close() error
}
