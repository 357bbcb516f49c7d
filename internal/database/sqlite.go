package database

import (
	"database/sql"
	"fmt"
	"time"

	"forge-go/internal/database/migrations"
	"forge-go/internal/forge"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the HistoryStore interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite history store and brings its schema to
// the latest version. path can be a file path or ":memory:" for an in-memory
// database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database %s: %w", path, err)
	}

	return &SQLiteStore{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RecordOperation inserts a new imaging operation record and returns its ID.
func (s *SQLiteStore) RecordOperation(op *forge.ImagingOperation) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO imaging_operations (op_id, operation, image_path, device_path, bytes, verified, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.OpID, op.Operation, op.ImagePath, op.DevicePath, op.Bytes, op.Verified, op.Status, op.Error, op.StartedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("recording operation %s: %w", op.OpID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// FinishOperation finalizes a previously recorded operation with its outcome.
func (s *SQLiteStore) FinishOperation(id int64, status, errMsg string, bytes int64, verified bool, finishedAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE imaging_operations
		SET status = ?, error = ?, bytes = ?, verified = ?, finished_at = ?
		WHERE id = ?`,
		status, errMsg, bytes, verified, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finish result for operation %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %d: %w", id, forge.ErrOperationNotFound)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteStore) ListOperations(limit int) ([]*forge.ImagingOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, op_id, operation, image_path, device_path, bytes, verified, status, error, started_at, finished_at
		FROM imaging_operations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*forge.ImagingOperation
	for rows.Next() {
		var op forge.ImagingOperation
		if err := rows.Scan(&op.ID, &op.OpID, &op.Operation, &op.ImagePath, &op.DevicePath,
			&op.Bytes, &op.Verified, &op.Status, &op.Error, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing history database: %w", err)
	}
	return nil
}
