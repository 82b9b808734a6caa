package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/daemon"
	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/internal/telemetry"
	"github.com/marmos91/cntfs/pkg/adapter/cnt"
	"github.com/marmos91/cntfs/pkg/api"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/config"
	"github.com/marmos91/cntfs/pkg/files"
	"github.com/marmos91/cntfs/pkg/metrics"
	"github.com/marmos91/cntfs/pkg/metrics/prometheus"
	"github.com/marmos91/cntfs/pkg/server"
	"github.com/marmos91/cntfs/pkg/stats"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cntfs server",
	Long: `Start the cntfs server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/cntfs/config.yaml.

Examples:
  # Start in background (default)
  cntfs start

  # Start in foreground
  cntfs start --foreground

  # Start with custom config file
  cntfs start --config /etc/cntfs/config.yaml

  # Start with environment variable overrides
  CNTFS_LOGGING_LEVEL=DEBUG CNTFS_SERVER_PORT=7000 cntfs start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cntfs/cntfs.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/cntfs/cntfs.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon(cmd)
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	fmt.Println("cntfs - sandboxed file-sharing server")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}

	if pidFile != "" {
		rec := daemon.Record{
			PID:     os.Getpid(),
			Listen:  net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.Port)),
			Root:    cfg.Server.Root,
			Started: time.Now(),
		}
		if err := daemon.Write(pidFile, rec); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// buildServer opens the backends named by cfg and wires them into the cnt
// adapter and the HTTP side servers. Resources opened here are released by
// the returned server's shutdown, or immediately on error.
func buildServer(cfg *config.Config) (_ *server.Server, err error) {
	srv := server.New(cfg.ShutdownTimeout)
	defer func() {
		if err != nil {
			// Serve without adapters only runs the closers.
			_ = srv.Serve(context.Background())
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	st, err := config.OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	srv.OnShutdown("store", st.Close)
	logger.Info("Store opened", logger.KeyStore, cfg.Store.Type)

	history, err := stats.OpenHistory(cfg.Stats.HistoryPath, cfg.Stats.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer history: %w", err)
	}
	srv.OnShutdown("transfer history", history.Close)

	fm, err := files.NewManager(cfg.Server.Root, st, files.WithMaxUploadSize(cfg.Server.MaxUploadSize.Int64()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sandbox: %w", err)
	}
	logger.Info("Sandbox ready", "root", fm.Root(), "max_upload_size", cfg.Server.MaxUploadSize.String())

	adapter, err := cnt.New(cfg.AdapterConfig(), cnt.Dependencies{
		Files: fm,
		Auth:  auth.New(st),
		Stats: history,
	}, prometheus.NewServerMetrics())
	if err != nil {
		return nil, err
	}
	srv.AddAdapter(adapter)

	if cfg.API.IsEnabled() {
		srv.AddAuxiliary(api.NewServer(cfg.API, api.Dependencies{
			Store:     st,
			StoreType: cfg.Store.Type,
			Stats:     history,
		}))
		logger.Info("API server configured", "port", cfg.API.Port)
	}
	if cfg.Metrics.Enabled {
		srv.AddAuxiliary(metrics.NewServer(cfg.Server.BindAddress, cfg.Metrics.Port))
	}

	return srv, nil
}
