// Package optimistic tracks values that are shown before the server confirms them.
package optimistic

import "sync"

// Counter holds a confirmed value and at most one pending proposal. While a
// proposal is pending, Value reports it; server refreshes land in the
// confirmed value and take effect once the proposal is confirmed or rolled back.
type Counter struct {
	mu        sync.Mutex
	confirmed int
	proposed  int
	pending   bool
}

// Value is the number to display.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return c.proposed
	}
	return c.confirmed
}

// Confirmed is the last server-confirmed value.
func (c *Counter) Confirmed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

func (c *Counter) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Store records a value read from the server.
func (c *Counter) Store(v int) {
	c.mu.Lock()
	c.confirmed = v
	c.mu.Unlock()
}

// Propose shows v until Confirm or Rollback. It returns false, and changes
// nothing, when another proposal is already pending.
func (c *Counter) Propose(v int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return false
	}
	c.proposed = v
	c.pending = true
	return true
}

// Confirm resolves the pending proposal with the server's value.
func (c *Counter) Confirm(v int) {
	c.mu.Lock()
	c.confirmed = v
	c.pending = false
	c.mu.Unlock()
}

// Rollback drops the pending proposal and returns the restored value.
func (c *Counter) Rollback() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	return c.confirmed
}
