// Package daemon tracks a background cntfs server through its PID file, and
// starts or signals it.
//
// The PID file is JSON. Besides the PID it records the protocol address and
// the sandbox root, so `cntfs status` can describe a running server without
// its HTTP API.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotRunning is returned by Read when there is no PID file.
	ErrNotRunning = errors.New("no cntfs server is running")

	// ErrExited is returned by Signal when the process is already gone.
	ErrExited = errors.New("server process already exited")

	// ErrUnsupported is returned by Spawn where background mode is not
	// available.
	ErrUnsupported = errors.New("daemon mode is not supported on this platform, use --foreground")
)

// Record is the content of a PID file.
type Record struct {
	PID     int       `json:"pid"`
	Listen  string    `json:"listen,omitempty"`
	Root    string    `json:"root,omitempty"`
	Started time.Time `json:"started"`
}

// Uptime is the time since Started, rounded to the second. It is zero when
// Started is unknown.
func (r Record) Uptime(now time.Time) time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	return now.Sub(r.Started).Round(time.Second)
}

// Write stores r at path, creating the parent directory. The file is
// replaced atomically so a concurrent Read never sees half a record.
func Write(path string, r Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cntfs-pid-*")
	if err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Read loads the record at path. A missing file wraps ErrNotRunning.
func Read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w (no PID file at %s)", ErrNotRunning, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read PID file: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil || r.PID <= 0 {
		return Record{}, fmt.Errorf("%s is not a cntfs PID file", path)
	}
	return r, nil
}

// Running returns the record at path when its process is alive.
func Running(path string) (Record, bool) {
	r, err := Read(path)
	if err != nil || !alive(r.PID) {
		return Record{}, false
	}
	return r, true
}
