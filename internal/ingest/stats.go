// ABOUTME: Counters describing one ingestion run.
// ABOUTME: Per-table row and batch totals plus element and timing figures.
package ingest

import (
	"time"

	"github.com/harperreed/healthx/internal/models"
)

// Stats summarizes a run. A run is single-threaded, so plain fields suffice.
type Stats struct {
	Elements int64                  `json:"elements" yaml:"elements"`
	Ignored  int64                  `json:"ignored" yaml:"ignored"`
	Rows     map[models.Table]int64 `json:"rows" yaml:"rows"`
	Loaded   map[models.Table]int64 `json:"loaded" yaml:"loaded"`
	Batches  map[models.Table]int   `json:"batches" yaml:"batches"`
	Duration time.Duration          `json:"duration" yaml:"duration"`
}

func newStats() *Stats {
	return &Stats{
		Rows:    make(map[models.Table]int64),
		Loaded:  make(map[models.Table]int64),
		Batches: make(map[models.Table]int),
	}
}

// LoadedCounts returns loaded rows keyed by table name.
func (s *Stats) LoadedCounts() map[string]int64 {
	out := make(map[string]int64, len(models.AllTables))
	for _, t := range models.AllTables {
		out[string(t)] = s.Loaded[t]
	}
	return out
}
