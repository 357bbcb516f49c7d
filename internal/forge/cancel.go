package forge

import "sync/atomic"

// CancelFlag is the cooperative cancellation token shared between a signal
// handler and the transfer loops. Long-running operations poll it between
// chunk iterations; cancellation is never preemptive, so a chunk read or
// write always completes once started.
type CancelFlag struct {
	set atomic.Bool
}

func NewCancelFlag() *CancelFlag { return &CancelFlag{} }

// Cancel marks the flag. Safe to call from a signal handler goroutine.
func (c *CancelFlag) Cancel() { c.set.Store(true) }

// Cancelled reports whether cancellation was requested. A nil flag is never
// cancelled, so callers that don't need cancellation may pass nil.
func (c *CancelFlag) Cancelled() bool {
	if c == nil {
		return false
	}
	return c.set.Load()
}
