// ABOUTME: Root Cobra command for healthx CLI.
// ABOUTME: Loads configuration and the logger via PersistentPre/PostRunE.
package main

import (
	"fmt"

	"github.com/harperreed/healthx/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	flagBackend string
	flagDataDir string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "healthx",
	Short:         "Health export ingestion and query tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `healthx loads a health data export (export.xml) into an analytical
backend and answers questions about it.

BACKENDS:

  duckdb          Embedded database file at <data-dir>/health.duckdb (default)
  parquet         One Parquet file per table under <data-dir>/parquet
  elasticsearch   One index per table, named <index>_<table>

QUICK START:

  $ healthx ingest ~/Downloads/export.xml          # Load the export
  $ healthx summary                                # Row counts per type
  $ healthx search -t HKQuantityTypeIdentifierStepCount --value-min 1000
  $ healthx stats -t HKQuantityTypeIdentifierHeartRate
  $ healthx trend month -t HKQuantityTypeIdentifierStepCount
  $ healthx workout-stats -t HKWorkoutActivityTypeRunning

EXPLORING WITHOUT INGESTING:

  $ healthx inspect export.xml    # Tags, types, and sources in the file
  $ healthx grep "Polar"          # Records and workouts mentioning a term
  $ healthx by-type HKQuantityTypeIdentifierHeartRate   # Raw records of one type

MCP INTEGRATION:

  Run 'healthx mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants.

CONFIGURATION:

  Settings live in ~/.config/healthx/config.json and can be overridden with
  HEALTHX_BACKEND, HEALTHX_DATA_DIR, HEALTHX_SOURCE, HEALTHX_BATCH_SIZE,
  ES_ADDRESSES, ES_USER, ES_PASSWORD, and ES_INDEX. Flags win over both.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flagBackend != "" {
			cfg.Backend = flagBackend
		}
		if flagDataDir != "" {
			cfg.DataDir = flagDataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = newLogger(flagVerbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			_ = logger.Sync()
		}
		return nil
	},
}

// newLogger writes to stderr so stdout stays clean for results and MCP.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "storage backend: duckdb, parquet, or elasticsearch")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/healthx)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose development logging")
}
