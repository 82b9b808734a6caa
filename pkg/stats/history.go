package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultHistorySize bounds the history when no size is configured.
const DefaultHistorySize = 256

// History is a bounded, oldest-first record of transfers, optionally
// persisted as JSON. It is safe for concurrent use.
type History struct {
	mu        sync.RWMutex
	path      string
	limit     int
	transfers []Transfer
}

type historyFile struct {
	Transfers []Transfer `json:"transfers"`
}

// OpenHistory loads path (if it exists) and keeps at most limit records.
// An empty path gives a memory-only history. A corrupt file is an error.
func OpenHistory(path string, limit int) (*History, error) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	h := &History{path: path, limit: limit}
	if path == "" {
		return h, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transfer history: %w", err)
	}
	if len(data) == 0 {
		return h, nil
	}

	var f historyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse transfer history %s: %w", path, err)
	}
	h.transfers = trim(f.Transfers, limit)
	return h, nil
}

// RecordTransfer appends t, evicting the oldest record when full.
func (h *History) RecordTransfer(t Transfer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transfers = trim(append(h.transfers, t), h.limit)
}

// All returns a copy of every record, oldest first.
func (h *History) All() []Transfer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Transfer{}, h.transfers...)
}

// ForUser returns the records of one user, oldest first.
func (h *History) ForUser(username string) []Transfer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := []Transfer{}
	for _, t := range h.transfers {
		if t.Username == username {
			out = append(out, t)
		}
	}
	return out
}

// Report returns the report for username.
func (h *History) Report(username string) Report {
	return NewReport(h.ForUser(username))
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.transfers)
}

// Save writes the history to its file, replacing it atomically. It is a
// no-op for memory-only histories.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}

	h.mu.RLock()
	data, err := json.MarshalIndent(historyFile{Transfers: h.transfers}, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode transfer history: %w", err)
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".transfers-*.json")
	if err != nil {
		return fmt.Errorf("write transfer history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write transfer history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write transfer history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace transfer history: %w", err)
	}
	return nil
}

// Close persists the history.
func (h *History) Close() error {
	return h.Save()
}

func trim(ts []Transfer, limit int) []Transfer {
	if len(ts) <= limit {
		return ts
	}
	return append([]Transfer{}, ts[len(ts)-limit:]...)
}
