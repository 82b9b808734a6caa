package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/pkg/config"
)

func TestShowSection(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CNTFS_SERVER_PORT", "7000")

	var buf bytes.Buffer
	showCmd.SetOut(&buf)
	showOutput, showSection = "json", "server"
	t.Cleanup(func() {
		showCmd.SetOut(nil)
		showOutput, showSection = "yaml", ""
	})

	require.NoError(t, runConfigShow(showCmd, nil))
	var server map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &server))
	assert.EqualValues(t, 7000, server["port"])
}

func TestSectionUnknown(t *testing.T) {
	_, err := section(config.GetDefaultConfig(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server")
	assert.Contains(t, err.Error(), "store")
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("EDITOR", "code --wait")
	t.Setenv("VISUAL", "")
	assert.Equal(t, []string{"code", "--wait", "/tmp/c.yaml"}, editorCommand("/tmp/c.yaml").Args)

	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "nano")
	assert.Equal(t, []string{"nano", "/tmp/c.yaml"}, editorCommand("/tmp/c.yaml").Args)

	t.Setenv("VISUAL", "")
	assert.Equal(t, []string{"vi", "/tmp/c.yaml"}, editorCommand("/tmp/c.yaml").Args)
}
