package database

import (
	"os"
	"path/filepath"
	"testing"

	"zipup/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() = %v, want nil", err)
		}
	})

	t.Run("sqlite database creates data dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "db")
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir})
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(filepath.Join(dir, HistoryFile)); err != nil {
			t.Errorf("history file not created: %v", err)
		}
	})

	errorCases := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"sqlite database without data_dir", config.DatabaseConfig{Type: "sqlite"}},
		{"unknown database type", config.DatabaseConfig{Type: "unknown"}},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewDatabaseFromConfig(tc.cfg)
			if err == nil {
				t.Error("NewDatabaseFromConfig() expected error, got nil")
			}
			if got != nil {
				t.Error("NewDatabaseFromConfig() should return nil on error")
				got.Close()
			}
		})
	}
}
