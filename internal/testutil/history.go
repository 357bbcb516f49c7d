package testutil

import (
	"sync"
	"time"

	"forge-go/internal/forge"
)

// MemoryHistory is an in-memory HistoryStore for tests that don't want a
// real database.
type MemoryHistory struct {
	mu     sync.Mutex
	nextID int64
	ops    []*forge.ImagingOperation
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{nextID: 1}
}

func (h *MemoryHistory) RecordOperation(op *forge.ImagingOperation) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cp := *op
	cp.ID = h.nextID
	h.nextID++
	h.ops = append(h.ops, &cp)
	return cp.ID, nil
}

func (h *MemoryHistory) FinishOperation(id int64, status, errMsg string, bytes int64, verified bool, finishedAt time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, op := range h.ops {
		if op.ID == id {
			op.Status = status
			op.Error = errMsg
			op.Bytes = bytes
			op.Verified = verified
			op.FinishedAt.Time = finishedAt
			op.FinishedAt.Valid = true
			return nil
		}
	}
	return forge.ErrOperationNotFound
}

func (h *MemoryHistory) ListOperations(limit int) ([]*forge.ImagingOperation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*forge.ImagingOperation
	for i := len(h.ops) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *h.ops[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (h *MemoryHistory) Close() error { return nil }
