package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "cntfs", "config.yaml")
	if path != expected {
		t.Errorf("Expected path %q, got %q", expected, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read generated config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# cntfs Configuration File") {
		t.Error("Expected generated config to start with the header comment")
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
	for _, section := range []string{"logging", "server", "store", "stats", "api"} {
		if _, ok := parsed[section]; !ok {
			t.Errorf("Expected section %q in generated config", section)
		}
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatalf("Failed to overwrite config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if string(data) == "garbage" {
		t.Error("Expected force to replace the existing file")
	}
}

func TestInitConfigToPath_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "custom.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config at %s: %v", path, err)
	}
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("x: 1\n"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := InitConfigToPath(path, false); err == nil {
		t.Error("Expected error when file exists")
	}
	if err := InitConfigToPath(path, true); err != nil {
		t.Errorf("Expected force to succeed, got: %v", err)
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("XDG_STATE_HOME", tmpDir)

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config should load, got: %v", err)
	}
	if cfg.Server.Port != 61324 {
		t.Errorf("Expected port 61324, got %d", cfg.Server.Port)
	}
	if cfg.Store.SQLite.Path != filepath.Join(tmpDir, "cntfs", "cntfs.db") {
		t.Errorf("Unexpected sqlite path %q", cfg.Store.SQLite.Path)
	}
}
