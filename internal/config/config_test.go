// ABOUTME: Tests for healthx configuration management.
// ABOUTME: Covers load, save, defaults, env overrides, backend factories, and path expansion.
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/healthx/internal/models"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != "duckdb" {
		t.Errorf("GetBackend() = %q, want %q", got, "duckdb")
	}
	if got := cfg.GetBatchSize(); got != 50000 {
		t.Errorf("GetBatchSize() = %d, want 50000", got)
	}
	if got := cfg.GetSource(); got != "export.xml" {
		t.Errorf("GetSource() = %q, want %q", got, "export.xml")
	}
	es := cfg.GetElastic()
	if len(es.Addresses) != 1 || es.Addresses[0] != "http://localhost:9200" {
		t.Errorf("GetElastic().Addresses = %v", es.Addresses)
	}
	if es.Index != "apple_health_data" {
		t.Errorf("GetElastic().Index = %q", es.Index)
	}
}

func TestGetDataDirDefault(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cfg := &Config{}
	want := filepath.Join(tmpDir, "healthx")
	if got := cfg.GetDataDir(); got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
	if got := cfg.LedgerPath(); got != filepath.Join(want, "runs.db") {
		t.Errorf("LedgerPath() = %q", got)
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/health-data"}
	got := cfg.GetDataDir()
	want := filepath.Join(home, "health-data")
	if got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/health", filepath.Join(home, "data/health")},
		{"data/health", "data/health"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDestinationPerBackend(t *testing.T) {
	cfg := &Config{DataDir: "/srv/health"}
	if got := cfg.Destination(); got != "/srv/health/health.duckdb" {
		t.Errorf("duckdb Destination() = %q", got)
	}
	cfg.Backend = "parquet"
	if got := cfg.Destination(); got != "/srv/health/parquet" {
		t.Errorf("parquet Destination() = %q", got)
	}
	cfg.Backend = "elasticsearch"
	if got := cfg.Destination(); got != "http://localhost:9200/apple_health_data" {
		t.Errorf("elasticsearch Destination() = %q", got)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.Backend != "" {
		t.Errorf("Expected empty Backend, got %q", cfg.Backend)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := &Config{
		Backend:   "parquet",
		DataDir:   "/tmp/health-data",
		BatchSize: 1000,
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://es:9200"},
		},
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "healthx", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Backend != "parquet" {
		t.Errorf("Backend mismatch: got %q, want %q", loaded.Backend, "parquet")
	}
	if loaded.BatchSize != 1000 {
		t.Errorf("BatchSize mismatch: got %d", loaded.BatchSize)
	}
	if loaded.Elasticsearch.Addresses[0] != "http://es:9200" {
		t.Errorf("Addresses mismatch: got %v", loaded.Elasticsearch.Addresses)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := (&Config{Backend: "parquet", Source: "/data/a.xml"}).Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	t.Setenv("HEALTHX_BACKEND", "elasticsearch")
	t.Setenv("HEALTHX_BATCH_SIZE", "250")
	t.Setenv("ES_ADDRESSES", "http://a:9200,http://b:9200")
	t.Setenv("ES_INDEX", "mine")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "elasticsearch" {
		t.Errorf("Backend = %q, want env value", cfg.Backend)
	}
	if cfg.Source != "/data/a.xml" {
		t.Errorf("Source = %q, unset env must keep the file value", cfg.Source)
	}
	if cfg.BatchSize != 250 {
		t.Errorf("BatchSize = %d, want 250", cfg.BatchSize)
	}
	es := cfg.GetElastic()
	if len(es.Addresses) != 2 || es.Addresses[1] != "http://b:9200" {
		t.Errorf("Addresses = %v", es.Addresses)
	}
	if es.Index != "mine" {
		t.Errorf("Index = %q", es.Index)
	}
}

func TestEnvBadBatchSize(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HEALTHX_BATCH_SIZE", "lots")
	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric HEALTHX_BATCH_SIZE")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "healthx")
	_ = os.MkdirAll(configDir, 0755)
	_ = os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600)

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestValidate(t *testing.T) {
	if err := (&Config{}).Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if err := (&Config{Backend: "sqlite"}).Validate(); err == nil {
		t.Error("Expected error for unknown backend")
	}
	if err := (&Config{BatchSize: -5}).Validate(); err == nil {
		t.Error("Expected error for negative batch size")
	}
}

func TestOpenSinkAndQuerierDuckDB(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}
	ctx := context.Background()

	if _, err := cfg.OpenQuerier(ctx, zap.NewNop()); !errors.Is(err, models.ErrSourceNotFound) {
		t.Fatalf("OpenQuerier() before ingestion = %v, want ErrSourceNotFound", err)
	}

	sink, err := cfg.OpenSink(zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSink() failed: %v", err)
	}
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	q, err := cfg.OpenQuerier(ctx, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenQuerier() failed: %v", err)
	}
	defer q.Close()
	if q.Name() != "duckdb" {
		t.Errorf("Name() = %q", q.Name())
	}
}

func TestOpenSinkParquetAndElastic(t *testing.T) {
	cfg := &Config{Backend: "parquet", DataDir: t.TempDir()}
	sink, err := cfg.OpenSink(zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSink(parquet) failed: %v", err)
	}
	if sink.Name() != "parquet" {
		t.Errorf("Name() = %q", sink.Name())
	}

	cfg.Backend = "elasticsearch"
	sink, err = cfg.OpenSink(zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSink(elasticsearch) failed: %v", err)
	}
	if sink.Name() != "elasticsearch" {
		t.Errorf("Name() = %q", sink.Name())
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "markdown"}
	if _, err := cfg.OpenSink(zap.NewNop()); err == nil {
		t.Error("Expected error for unknown backend")
	}
	if _, err := cfg.OpenQuerier(context.Background(), zap.NewNop()); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
