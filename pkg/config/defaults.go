package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/cntfs/internal/bytesize"
	"github.com/marmos91/cntfs/pkg/adapter/cnt"
	"github.com/marmos91/cntfs/pkg/api"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/stats"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Defaults are applied in place, modifying the provided config.
// Zero values are replaced with sensible defaults.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyStatsDefaults(&cfg.Stats)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
// Note: Enabled defaults to false.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu"}
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = cnt.DefaultPort
	}
	if cfg.Root == "" {
		cfg.Root = defaultRoot()
	}
	if cfg.FrameSize == 0 {
		cfg.FrameSize = protocol.DefaultFrameSize
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = bytesize.GiB
	}
	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = 30 * time.Second
	}
	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = 30 * time.Second
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = 5 * time.Minute
	}
}

// applyStoreDefaults fills in the selected backend's location. Postgres
// port and sslmode are left to the database package.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreSQLite
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(getConfigDir(), "cntfs.db")
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = filepath.Join(getConfigDir(), "badger")
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
}

func applyStatsDefaults(cfg *StatsConfig) {
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(getStateDir(), "transfers.json")
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = stats.DefaultHistorySize
	}
}

// applyMetricsDefaults sets metrics defaults.
// Note: Enabled defaults to false (opt-in).
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cnt", "data")
	}
	return filepath.Join(home, "cnt", "data")
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Documentation
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		API: api.APIConfig{},
	}
	ApplyDefaults(cfg)
	return cfg
}
