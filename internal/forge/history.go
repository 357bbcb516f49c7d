package forge

import (
	"database/sql"
	"time"
)

// Operation statuses recorded in the history store.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// ImagingOperation is one recorded imaging run: a write of an image to a
// device or a capture of a device into an image.
type ImagingOperation struct {
	ID         int64
	OpID       string // per-invocation UUID, correlates with log lines
	Operation  string // "write" or "read"
	ImagePath  string
	DevicePath string
	Bytes      int64
	Verified   bool
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// HistoryStore persists imaging operation records.
type HistoryStore interface {
	// RecordOperation inserts a new record and returns its ID.
	RecordOperation(op *ImagingOperation) (int64, error)

	// FinishOperation finalizes a record with its outcome.
	FinishOperation(id int64, status, errMsg string, bytes int64, verified bool, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*ImagingOperation, error)

	Close() error
}
