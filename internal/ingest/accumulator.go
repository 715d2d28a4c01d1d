// ABOUTME: Per-table row buffers that emit bounded, homogeneous batches.
// ABOUTME: Each table has its own threshold; Flush emits one terminal batch per table.
package ingest

import "github.com/harperreed/healthx/internal/models"

// Accumulator buffers normalized rows per table. It is owned by a single run.
type Accumulator struct {
	thresholds map[models.Table]int
	buffers    map[models.Table][]models.Row
}

// NewAccumulator returns an accumulator using size for every table.
func NewAccumulator(size int) *Accumulator {
	a := &Accumulator{
		thresholds: make(map[models.Table]int, len(models.AllTables)),
		buffers:    make(map[models.Table][]models.Row, len(models.AllTables)),
	}
	for _, t := range models.AllTables {
		a.SetThreshold(t, size)
	}
	return a
}

// SetThreshold overrides the batch size of one table. Sizes below 1 become 1.
func (a *Accumulator) SetThreshold(t models.Table, size int) {
	if size < 1 {
		size = 1
	}
	a.thresholds[t] = size
}

// Add buffers row and returns a full batch when its table reaches the threshold.
func (a *Accumulator) Add(row models.Row) (models.Batch, bool) {
	t := row.Table()
	buf := append(a.buffers[t], row)
	if len(buf) < a.thresholds[t] {
		a.buffers[t] = buf
		return models.Batch{}, false
	}
	a.buffers[t] = nil
	return models.NewBatch(t, buf), true
}

// Pending returns the number of buffered rows for t.
func (a *Accumulator) Pending(t models.Table) int {
	return len(a.buffers[t])
}

// Flush empties every buffer and returns exactly one batch per table in
// models.AllTables order. Batches may be empty.
func (a *Accumulator) Flush() []models.Batch {
	out := make([]models.Batch, 0, len(models.AllTables))
	for _, t := range models.AllTables {
		out = append(out, models.NewBatch(t, a.buffers[t]))
		a.buffers[t] = nil
	}
	return out
}
