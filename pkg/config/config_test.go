package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/cntfs/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "info"

server:
  root: "` + yamlSafePath(tmpDir) + `/data"
  max_upload_size: 100MiB

store:
  type: memory
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Server.Port != 61324 {
		t.Errorf("Expected default port 61324, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadSize != 100*bytesize.MiB {
		t.Errorf("Expected max upload size 100MiB, got %v", cfg.Server.MaxUploadSize)
	}
	if cfg.Server.Root != yamlSafePath(tmpDir)+"/data" {
		t.Errorf("Unexpected root %q", cfg.Server.Root)
	}
	if cfg.Store.Type != StoreMemory {
		t.Errorf("Expected store type 'memory', got %q", cfg.Store.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got error: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != StoreSQLite {
		t.Errorf("Expected default store 'sqlite', got %q", cfg.Store.Type)
	}
	if cfg.Server.FrameSize != 1024 {
		t.Errorf("Expected default frame size 1024, got %d", cfg.Server.FrameSize)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging: [unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  frame_size: 64
store:
  type: redis
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"server.frame_size", "store.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
shutdown_timeout = "10s"

[logging]
level = "DEBUG"
format = "json"

[server]
port = 7000
root = "` + yamlSafePath(tmpDir) + `/data"

[server.timeouts]
idle = "1m"

[store]
type = "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Timeouts.Idle != time.Minute {
		t.Errorf("Expected idle timeout 1m, got %v", cfg.Server.Timeouts.Idle)
	}
	if cfg.Server.Timeouts.Read != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.Server.Timeouts.Read)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown_timeout 10s, got %v", cfg.ShutdownTimeout)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Stats.HistorySize != 256 {
		t.Errorf("Expected default history size 256, got %d", cfg.Stats.HistorySize)
	}
	if !cfg.API.IsEnabled() {
		t.Error("Expected API to be enabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if DefaultConfigExists() {
		t.Error("Expected no config in an empty config dir")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	expected := filepath.Join(tmpDir, "cntfs", "config.yaml")
	if got := GetDefaultConfigPath(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "cntfs") {
		t.Errorf("Unexpected config dir %q", got)
	}
}

func TestGetStateDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	if got := GetStateDir(); got != filepath.Join(tmpDir, "cntfs") {
		t.Errorf("Unexpected state dir %q", got)
	}
	if got := GetDefaultConfig().Stats.HistoryPath; got != filepath.Join(tmpDir, "cntfs", "transfers.json") {
		t.Errorf("Unexpected history path %q", got)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
server:
  port: 7000
store:
  type: memory
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("CNTFS_LOGGING_LEVEL", "DEBUG")
	t.Setenv("CNTFS_SERVER_PORT", "7100")
	t.Setenv("CNTFS_SERVER_MAX_UPLOAD_SIZE", "2GiB")
	t.Setenv("CNTFS_SERVER_TIMEOUTS_IDLE", "90s")
	t.Setenv("CNTFS_METRICS_ENABLED", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG' from env, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Expected port 7100 from env, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadSize != 2*bytesize.GiB {
		t.Errorf("Expected max upload size 2GiB from env, got %v", cfg.Server.MaxUploadSize)
	}
	if cfg.Server.Timeouts.Idle != 90*time.Second {
		t.Errorf("Expected idle timeout 90s from env, got %v", cfg.Server.Timeouts.Idle)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled from env")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 7200
	cfg.Server.MaxUploadSize = 64 * bytesize.MiB
	cfg.Store.Type = StoreBadger

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("Expected mode 0600, got %o", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 7200 {
		t.Errorf("Expected port 7200, got %d", loaded.Server.Port)
	}
	if loaded.Server.MaxUploadSize != 64*bytesize.MiB {
		t.Errorf("Expected 64MiB, got %v", loaded.Server.MaxUploadSize)
	}
	if loaded.Store.Type != StoreBadger {
		t.Errorf("Expected badger store, got %q", loaded.Store.Type)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := MustLoad("")
	if err == nil || !strings.Contains(err.Error(), "cntfs init") {
		t.Errorf("Expected init hint, got: %v", err)
	}

	_, err = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got: %v", err)
	}
}
