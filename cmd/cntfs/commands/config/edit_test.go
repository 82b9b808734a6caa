//go:build !windows

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/pkg/config"
)

// fakeEditor installs an $EDITOR that replaces the edited file with body.
func fakeEditor(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	content := filepath.Join(dir, "content.yaml")
	require.NoError(t, os.WriteFile(content, []byte(body), 0644))
	script := filepath.Join(dir, "editor.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncp "+content+" \"$1\"\n"), 0755))
	t.Setenv("EDITOR", script)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := config.GetDefaultConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func runEdit(t *testing.T) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	editCmd.SetOut(&buf)
	t.Cleanup(func() { editCmd.SetOut(nil) })
	err := runConfigEdit(editCmd, nil)
	return buf.String(), err
}

func TestEditKeepsValidChange(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7000\n")
	fakeEditor(t, "server:\n  port: 7001\n")

	out, err := runEdit(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "7001")
}

func TestEditRestoresInvalidChange(t *testing.T) {
	before := "server:\n  port: 7000\n"
	path := writeConfig(t, before)
	fakeEditor(t, "server:\n  port: 70000\n")

	_, err := runEdit(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previous version restored")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, string(data))
}

func TestEditKeepInvalid(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7000\n")
	fakeEditor(t, "server:\n  port: 70000\n")
	editKeepInvalid = true
	t.Cleanup(func() { editKeepInvalid = false })

	_, err := runEdit(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kept as is")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "70000")
}

func TestEditMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := runEdit(t)
	assert.ErrorContains(t, err, "cntfs init")
}
