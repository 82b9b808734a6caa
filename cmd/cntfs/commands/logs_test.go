package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	text := time.Date(2024, 1, 15, 10, 30, 45, 0, time.Local)

	tests := []struct {
		name string
		line string
		want time.Time
	}{
		{"text format", "[2024-01-15 10:30:45] [INFO] client connected username=alice", text},
		{"json format", `{"time":"2024-01-15T10:30:45.123Z","level":"INFO","msg":"x"}`, time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)},
		{"bracket without time", "[not a time] message", time.Time{}},
		{"plain line", "cntfs - sandboxed file-sharing server", time.Time{}},
		{"broken json", `{"time":`, time.Time{}},
		{"empty", "", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTimestamp(tt.line)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestTailLines(t *testing.T) {
	input := "one\ntwo\nthree\nfour\nfive\n"

	got, err := tailLines(strings.NewReader(input), 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "five"}, got)

	got, err = tailLines(strings.NewReader(input), 10, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)

	got, err = tailLines(strings.NewReader(input), 5, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)

	got, err = tailLines(strings.NewReader(input), 0, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTailLinesSince(t *testing.T) {
	input := strings.Join([]string{
		"[2024-01-15 09:00:00] [INFO] old",
		"[2024-01-15 11:00:00] [INFO] new",
		"untimed continuation",
		"[2024-01-15 12:00:00] [WARN] newer",
	}, "\n")
	since := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)

	got, err := tailLines(strings.NewReader(input), 10, since)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2024-01-15 11:00:00] [INFO] new",
		"untimed continuation",
		"[2024-01-15 12:00:00] [WARN] newer",
	}, got)
}

func TestShowLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cntfs.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0644))

	var buf bytes.Buffer
	require.NoError(t, showLogs(&buf, path, 2, time.Time{}))
	assert.Equal(t, "b\nc\n", buf.String())

	err := showLogs(&buf, filepath.Join(t.TempDir(), "missing.log"), 2, time.Time{})
	assert.Error(t, err)
}
