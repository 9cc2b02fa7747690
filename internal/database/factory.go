package database

import (
	"fmt"
	"os"
	"path/filepath"

	"zipup/internal/config"
	"zipup/internal/zipup"
)

// HistoryFile is the sqlite file name under the configured data directory.
const HistoryFile = "history.db"

// NewDatabaseFromConfig creates the upload history store for the config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (zipup.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, HistoryFile))
	case "memory":
		return open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func open(path string) (zipup.History, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
