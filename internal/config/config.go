// ABOUTME: healthx configuration with backend selection.
// ABOUTME: JSON file settings, environment overrides, and the backend factories.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/harperreed/healthx/internal/ledger"
	"github.com/harperreed/healthx/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultBackend      = "duckdb"
	DefaultSource       = "export.xml"
	DefaultBatchSize    = 50000
	DefaultElasticAddr  = "http://localhost:9200"
	DefaultElasticIndex = "apple_health_data"
)

// Config stores healthx configuration.
type Config struct {
	// Backend selects the storage engine: "duckdb" (default), "elasticsearch", or "parquet".
	Backend string `json:"backend,omitempty" env:"HEALTHX_BACKEND"`

	// DataDir is the root directory for data storage.
	// DuckDB puts health.duckdb here, Parquet puts parquet/, the run ledger puts runs.db.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/healthx.
	DataDir string `json:"data_dir,omitempty" env:"HEALTHX_DATA_DIR"`

	// Source is the export document ingested when none is given on the command line.
	Source string `json:"source,omitempty" env:"HEALTHX_SOURCE"`

	// BatchSize is the per-table batch threshold of ingestion.
	BatchSize int `json:"batch_size,omitempty" env:"HEALTHX_BATCH_SIZE"`

	Elasticsearch Elasticsearch `json:"elasticsearch,omitempty"`
}

// Elasticsearch holds search backend connection settings.
type Elasticsearch struct {
	Addresses []string `json:"addresses,omitempty" env:"ES_ADDRESSES" envSeparator:","`
	Username  string   `json:"username,omitempty" env:"ES_USER"`
	Password  string   `json:"password,omitempty" env:"ES_PASSWORD"`
	Index     string   `json:"index,omitempty" env:"ES_INDEX"`
}

// GetBackend returns the configured backend, defaulting to "duckdb".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return DefaultBackend
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetSource returns the export document path with ~ expanded.
func (c *Config) GetSource() string {
	if c.Source == "" {
		return DefaultSource
	}
	return ExpandPath(c.Source)
}

// GetBatchSize returns the batch threshold, defaulting to 50000.
func (c *Config) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// GetElastic returns search backend settings with defaults applied.
func (c *Config) GetElastic() storage.ElasticConfig {
	es := storage.ElasticConfig{
		Addresses: c.Elasticsearch.Addresses,
		Username:  c.Elasticsearch.Username,
		Password:  c.Elasticsearch.Password,
		Index:     c.Elasticsearch.Index,
	}
	if len(es.Addresses) == 0 {
		es.Addresses = []string{DefaultElasticAddr}
	}
	if es.Index == "" {
		es.Index = DefaultElasticIndex
	}
	return es
}

// DuckDBPath returns the database file of the duckdb backend.
func (c *Config) DuckDBPath() string {
	return filepath.Join(c.GetDataDir(), "health.duckdb")
}

// ParquetDir returns the table file directory of the parquet backend.
func (c *Config) ParquetDir() string {
	return filepath.Join(c.GetDataDir(), "parquet")
}

// LedgerPath returns the run ledger database path.
func (c *Config) LedgerPath() string {
	return ledger.DefaultPath(c.GetDataDir())
}

// Destination names where the configured backend stores data.
// The run ledger uses it to detect concurrent runs.
func (c *Config) Destination() string {
	switch c.GetBackend() {
	case "duckdb":
		return c.DuckDBPath()
	case "parquet":
		return c.ParquetDir()
	case "elasticsearch":
		es := c.GetElastic()
		return strings.Join(es.Addresses, ",") + "/" + es.Index
	}
	return c.GetBackend()
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DataDir returns the default data directory under XDG_DATA_HOME.
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "healthx")
}

// OpenSink creates the write side of the configured backend.
func (c *Config) OpenSink(log *zap.Logger) (storage.Sink, error) {
	switch c.GetBackend() {
	case "duckdb":
		return storage.OpenDuckDB(c.DuckDBPath(), log)
	case "parquet":
		return storage.OpenParquet(c.ParquetDir(), log), nil
	case "elasticsearch":
		return storage.OpenElastic(c.GetElastic(), log)
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.GetBackend())
	}
}

// OpenQuerier creates the read side of the configured backend.
func (c *Config) OpenQuerier(ctx context.Context, log *zap.Logger) (storage.Querier, error) {
	switch c.GetBackend() {
	case "duckdb":
		return storage.OpenDuckDBQuerier(c.DuckDBPath(), log)
	case "parquet":
		return storage.OpenParquetQuerier(ctx, c.ParquetDir(), log)
	case "elasticsearch":
		return storage.OpenElastic(c.GetElastic(), log)
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.GetBackend())
	}
}

// Validate rejects settings no backend can use.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case "duckdb", "parquet", "elasticsearch":
	default:
		return fmt.Errorf("unknown backend: %q", c.GetBackend())
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "healthx", "config.json")
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(GetConfigPath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from set environment variables.
// Unset variables leave the file values in place.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
