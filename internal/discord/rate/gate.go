package rate

import (
	"context"
	"sync"
)

// Gate is the account-wide throttle. While closed, every request waits
// regardless of its bucket.
type Gate struct {
	mu     sync.Mutex
	closed bool
	open   chan struct{} // closed while the gate is open
}

// NewGate creates an open gate.
func NewGate() *Gate {
	open := make(chan struct{})
	close(open)

	return &Gate{open: open}
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the gate. Closing a closed gate does nothing.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}

	g.closed = true
	g.open = make(chan struct{})
}

// Open reopens the gate and wakes every waiter. Opening an open gate does nothing.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		return
	}

	g.closed = false
	close(g.open)
}

// IsOpen reports whether requests may currently pass.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.closed
}
