package database

import (
	"os"
	"path/filepath"
	"testing"

	"forge-go/internal/config"
)

func TestNewHistoryFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewHistoryFromConfig(cfg)

		if err != nil {
			t.Errorf("NewHistoryFromConfig() unexpected error: %v", err)
			return
		}

		if got == nil {
			t.Error("NewHistoryFromConfig() returned nil")
		}

		if got != nil {
			got.Close()
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.DatabaseConfig{
			Type:    "sqlite",
			DataDir: dir,
		}
		got, err := NewHistoryFromConfig(cfg)

		if err != nil {
			t.Errorf("NewHistoryFromConfig() unexpected error: %v", err)
			return
		}

		if got == nil {
			t.Error("NewHistoryFromConfig() returned nil")
		}

		if _, err := os.Stat(filepath.Join(dir, "history.db")); err != nil {
			t.Errorf("history.db not created: %v", err)
		}

		if got != nil {
			got.Close()
		}
	})

	t.Run("sqlite creates missing data_dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "db")
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dir}

		got, err := NewHistoryFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewHistoryFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(dir); err != nil {
			t.Errorf("data dir not created: %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewHistoryFromConfig(cfg)

		if err == nil {
			t.Error("NewHistoryFromConfig() expected error for missing data_dir, got nil")
		}

		if got != nil {
			t.Error("NewHistoryFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "unknown"}
		got, err := NewHistoryFromConfig(cfg)

		if err == nil {
			t.Error("NewHistoryFromConfig() expected error for unknown type, got nil")
		}

		if got != nil {
			t.Error("NewHistoryFromConfig() should return nil on error")
			got.Close()
		}
	})
}
