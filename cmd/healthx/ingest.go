// ABOUTME: CLI command for loading an export document into the configured backend.
// ABOUTME: Records each run in the ledger and can expose Prometheus metrics meanwhile.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/healthx/internal/ingest"
	"github.com/harperreed/healthx/internal/ledger"
	"github.com/harperreed/healthx/internal/metrics"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/xmlstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestBatchSize   int
	ingestReplace     bool
	ingestForce       bool
	ingestMetricsAddr string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [export.xml]",
	Short: "Load an export document into the backend",
	Long: `Stream an export document into the configured backend.

Records, workouts, and the statistics nested in workouts are normalized
and loaded in batches into three tables: records, workouts, and
workout_stats. By default the destination is emptied first, so a run
always yields a complete copy of the export.

Only one run per destination may be in progress. A run that was killed
leaves its ledger entry as running; use --force to start anyway.

EXAMPLES:

  healthx ingest ~/Downloads/apple_health_export/export.xml
  healthx ingest export.xml -b parquet --batch-size 100000
  healthx ingest export.xml --metrics-addr :9102`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := cfg.GetSource()
		if len(args) == 1 {
			source = args[0]
		}
		batchSize := cfg.GetBatchSize()
		if cmd.Flags().Changed("batch-size") {
			batchSize = ingestBatchSize
		}
		ctx := cmd.Context()

		// Opening a sink creates the destination, so check the source first.
		if err := checkSource(source); err != nil {
			return err
		}

		led, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return err
		}
		defer led.Close()

		run, err := led.Begin(ctx, cfg.Destination(), cfg.GetBackend(), source, ingestForce)
		if err != nil {
			if errors.Is(err, models.ErrRunInProgress) {
				return fmt.Errorf("%w (use --force if the previous run died)", err)
			}
			return err
		}

		reg := prometheus.NewRegistry()
		m := metrics.NewIngest(reg)
		if ingestMetricsAddr != "" {
			stop := serveMetrics(ingestMetricsAddr, reg)
			defer stop()
		}

		stats, err := ingestInto(ctx, source, batchSize, m)
		if err != nil {
			if ferr := led.Fail(context.WithoutCancel(ctx), run.ID, err); ferr != nil {
				logger.Warn("failed to record run failure", zap.Error(ferr))
			}
			return fmt.Errorf("ingestion failed: %w", err)
		}
		if err := led.Finish(ctx, run.ID, stats.LoadedCounts()); err != nil {
			return err
		}

		if flagFormat != "text" {
			return writeOutput(cmd.OutOrStdout(), flagFormat, stats)
		}
		out := cmd.OutOrStdout()
		_, _ = color.New(color.FgGreen).Fprintf(out, "✓ Ingested %s into %s (run %s)\n", source, cfg.GetBackend(), run.ID)
		for _, t := range models.AllTables {
			fmt.Fprintf(out, "  %s %d rows\n", padRight(string(t), 14), stats.Loaded[t])
		}
		_, _ = color.New(color.Faint).Fprintf(out, "  %d elements read in %s\n", stats.Elements, stats.Duration.Round(time.Millisecond))
		return nil
	},
}

func checkSource(path string) error {
	r, err := xmlstream.Open(path)
	if err != nil {
		return err
	}
	return r.Close()
}

func ingestInto(ctx context.Context, source string, batchSize int, m *metrics.Ingest) (*ingest.Stats, error) {
	sink, err := cfg.OpenSink(logger)
	if err != nil {
		return nil, err
	}
	defer sink.Close()

	p := ingest.NewPipeline(sink, logger, m, ingest.Options{
		BatchSize: batchSize,
		Replace:   ingestReplace,
	})
	return p.Run(ctx, source)
}

// serveMetrics exposes reg on addr until the returned stop func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 50000, "rows per table per batch")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", true, "empty the destination before loading")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "start even if the ledger shows a run in progress")
	ingestCmd.Flags().StringVar(&ingestMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	rootCmd.AddCommand(ingestCmd)
}
