package config

import (
	"fmt"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/internal/telemetry"
	"github.com/marmos91/cntfs/pkg/adapter/cnt"
	"github.com/marmos91/cntfs/pkg/store"
	"github.com/marmos91/cntfs/pkg/store/badger"
	"github.com/marmos91/cntfs/pkg/store/database"
	"github.com/marmos91/cntfs/pkg/store/memory"
)

// OpenStore creates the credential and ownership store selected by cfg.Type.
func OpenStore(cfg StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case StoreMemory:
		return memory.New(), nil

	case StoreSQLite, "":
		return openDatabase(&database.Config{
			Type:   database.TypeSQLite,
			SQLite: database.SQLiteConfig{Path: cfg.SQLite.Path},
		})

	case StorePostgres:
		return openDatabase(&database.Config{
			Type: database.TypePostgres,
			Postgres: database.PostgresConfig{
				Host:         cfg.Postgres.Host,
				Port:         cfg.Postgres.Port,
				Database:     cfg.Postgres.Database,
				User:         cfg.Postgres.User,
				Password:     cfg.Postgres.Password,
				SSLMode:      cfg.Postgres.SSLMode,
				MaxOpenConns: cfg.Postgres.MaxOpenConns,
				MaxIdleConns: cfg.Postgres.MaxIdleConns,
			},
		})

	case StoreBadger:
		s, err := badger.New(badger.Config{Path: cfg.Badger.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

func openDatabase(cfg *database.Config) (store.Store, error) {
	s, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}
	return s, nil
}

// AdapterConfig converts the server section for the protocol adapter.
func (c *Config) AdapterConfig() cnt.Config {
	return cnt.Config{
		BindAddress:    c.Server.BindAddress,
		Port:           c.Server.Port,
		FrameSize:      c.Server.FrameSize,
		MaxConnections: c.Server.MaxConnections,
		Timeouts: cnt.TimeoutsConfig{
			Read:  c.Server.Timeouts.Read,
			Write: c.Server.Timeouts.Write,
			Idle:  c.Server.Timeouts.Idle,
		},
		ShutdownTimeout:    c.ShutdownTimeout,
		MetricsLogInterval: c.Server.MetricsLogInterval,
	}
}

// LoggerConfig converts the logging section.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// TracingConfig converts the telemetry section for the given build version.
func (c *Config) TracingConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "cntfs",
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ProfilingConfig converts the profiling section for the given build version.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    "cntfs",
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}
