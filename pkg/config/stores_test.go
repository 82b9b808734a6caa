package config

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenStore(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		cfg  StoreConfig
	}{
		{"memory", StoreConfig{Type: StoreMemory}},
		{"sqlite", StoreConfig{Type: StoreSQLite, SQLite: SQLiteConfig{Path: filepath.Join(tmpDir, "cntfs.db")}}},
		{"badger", StoreConfig{Type: StoreBadger, Badger: BadgerConfig{Path: filepath.Join(tmpDir, "badger")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenStore(tt.cfg)
			if err != nil {
				t.Fatalf("OpenStore failed: %v", err)
			}
			defer s.Close()

			if err := s.Healthcheck(context.Background()); err != nil {
				t.Errorf("Healthcheck failed: %v", err)
			}
		})
	}
}

func TestOpenStore_UnknownType(t *testing.T) {
	if _, err := OpenStore(StoreConfig{Type: "redis"}); err == nil {
		t.Error("Expected error for unknown store type")
	}
}
