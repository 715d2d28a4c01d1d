// ABOUTME: SQL schema for the ingestion run ledger.
// ABOUTME: One row per ingestion run with its destination, status, and counts.
package ledger

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    destination TEXT NOT NULL,
    backend TEXT NOT NULL,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    counts TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_destination_status ON runs(destination, status);
`
