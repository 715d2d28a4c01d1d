// ABOUTME: Single-threaded ingestion run from export document to storage sink.
// ABOUTME: Reader, normalizer, and accumulator form a pull chain; any failure aborts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/harperreed/healthx/internal/metrics"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/normalize"
	"github.com/harperreed/healthx/internal/storage"
	"github.com/harperreed/healthx/internal/xmlstream"
	"go.uber.org/zap"
)

// DefaultBatchSize is the per-table batch threshold when none is configured.
const DefaultBatchSize = 50000

// Options tunes a run.
type Options struct {
	BatchSize int
	// Replace drops existing destination tables before loading.
	Replace bool
}

// Pipeline loads one export document into one sink.
type Pipeline struct {
	sink    storage.Sink
	log     *zap.Logger
	metrics *metrics.Ingest
	opts    Options
	newNorm func() *normalize.Normalizer
}

// NewPipeline wires a pipeline. A nil m uses unregistered collectors.
func NewPipeline(sink storage.Sink, log *zap.Logger, m *metrics.Ingest, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if m == nil {
		m = metrics.NewIngest(nil)
	}
	return &Pipeline{sink: sink, log: log, metrics: m, opts: opts, newNorm: normalize.New}
}

// Run ingests the document at path. The source is opened before the
// destination is touched, so a missing file leaves the destination intact.
// On failure the sink is aborted and the partial Stats are returned with the error.
func (p *Pipeline) Run(ctx context.Context, path string) (*Stats, error) {
	r, err := xmlstream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	stats := newStats()
	started := time.Now()
	log := p.log.With(zap.String("source", path), zap.String("backend", p.sink.Name()))

	fail := func(err error) (*Stats, error) {
		stats.Duration = time.Since(started)
		if aerr := p.sink.Abort(context.WithoutCancel(ctx)); aerr != nil {
			log.Warn("abort failed", zap.Error(aerr))
		}
		log.Error("ingestion failed", zap.Error(err), zap.Int64("elements", stats.Elements))
		return stats, err
	}

	if p.opts.Replace {
		if err := p.sink.Reset(ctx); err != nil {
			return fail(fmt.Errorf("reset destination: %w", err))
		}
	}
	if err := p.sink.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("ensure schema: %w", err))
	}

	acc := NewAccumulator(p.opts.BatchSize)
	norm := p.newNorm()
	log.Info("ingestion started", zap.Int("batch_size", p.opts.BatchSize))

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		el, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		stats.Elements++
		p.metrics.ElementsRead.Inc()

		row, err := norm.Normalize(el)
		if err != nil {
			return fail(fmt.Errorf("normalize element %d: %w", stats.Elements, err))
		}
		if row == nil {
			stats.Ignored++
			continue
		}
		stats.Rows[row.Table()]++
		p.metrics.RowsNormalized.WithLabelValues(string(row.Table())).Inc()

		if b, full := acc.Add(row); full {
			if err := p.load(ctx, b, stats); err != nil {
				return fail(err)
			}
		}
	}

	for _, b := range acc.Flush() {
		if err := p.load(ctx, b, stats); err != nil {
			return fail(err)
		}
	}
	if err := p.sink.Finalize(ctx); err != nil {
		return fail(fmt.Errorf("finalize: %w", err))
	}

	stats.Duration = time.Since(started)
	log.Info("ingestion complete",
		zap.Int64("elements", stats.Elements),
		zap.Int64("records", stats.Rows[models.TableRecords]),
		zap.Int64("workouts", stats.Rows[models.TableWorkouts]),
		zap.Int64("workout_stats", stats.Rows[models.TableWorkoutStats]),
		zap.Duration("took", stats.Duration),
	)
	return stats, nil
}

func (p *Pipeline) load(ctx context.Context, b models.Batch, stats *Stats) error {
	started := time.Now()
	err := p.sink.LoadBatch(ctx, b)
	p.metrics.ObserveLoad(string(b.Table), p.sink.Name(), b.Len(), time.Since(started), err)
	if err != nil {
		return fmt.Errorf("load %s batch: %w", b.Table, err)
	}
	stats.Batches[b.Table]++
	stats.Loaded[b.Table] += int64(b.Len())
	p.log.Debug("batch loaded",
		zap.String("table", string(b.Table)),
		zap.Int("rows", b.Len()),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}
