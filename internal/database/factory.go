package database

import (
	"fmt"
	"os"
	"path/filepath"

	"forge-go/internal/config"
	"forge-go/internal/forge"
)

// NewHistoryFromConfig creates a HistoryStore implementation based on the database config type.
func NewHistoryFromConfig(cfg config.DatabaseConfig) (forge.HistoryStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "history.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
