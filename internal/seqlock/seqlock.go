// Package seqlock serializes mutating transactions per ledger account. The
// ledger rejects out-of-order sequence numbers, so at most one build+submit
// cycle may be in flight for an account; callers for other accounts never
// contend.
package seqlock

import (
	"context"
	"sync"
)

// Release frees the account's gate and wakes the next waiter. It is safe to
// call more than once; only the first call has effect.
type Release func()

// Table is the process-wide per-account admission gate. Gate records are
// created lazily on first use and retained for the process lifetime, so a
// release can never race with a freshly queued waiter on a destroyed gate.
type Table struct {
	mu    sync.Mutex
	gates map[string]*gate
}

type gate struct {
	held bool
	// waiters are woken in FIFO order, which totally orders mutations per
	// account by acquisition order.
	waiters []chan struct{}
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{gates: make(map[string]*gate)}
}

// Acquire suspends the caller until the gate for accountID is free, then
// holds it and returns the release handle. A waiting caller can abandon the
// queue through context cancellation; a holder cannot be cancelled and must
// call Release on every completion path.
func (t *Table) Acquire(ctx context.Context, accountID string) (Release, error) {
	t.mu.Lock()
	g, ok := t.gates[accountID]
	if !ok {
		g = &gate{}
		t.gates[accountID] = g
	}
	if !g.held {
		g.held = true
		t.mu.Unlock()
		return t.releaseFunc(accountID), nil
	}
	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	t.mu.Unlock()

	select {
	case <-ready:
		return t.releaseFunc(accountID), nil
	case <-ctx.Done():
		t.mu.Lock()
		removed := false
		for i, waiter := range g.waiters {
			if waiter == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				removed = true
				break
			}
		}
		t.mu.Unlock()
		if !removed {
			// The grant raced the cancellation and the gate is ours; pass it
			// to the next waiter instead of leaking it.
			t.release(accountID)
		}
		return nil, ctx.Err()
	}
}

// releaseFunc wraps release in a handle that is idempotent per acquisition.
func (t *Table) releaseFunc(accountID string) Release {
	var once sync.Once
	return func() {
		once.Do(func() { t.release(accountID) })
	}
}

func (t *Table) release(accountID string) {
	t.mu.Lock()
	g := t.gates[accountID]
	if g == nil {
		t.mu.Unlock()
		return
	}
	if len(g.waiters) > 0 {
		next := g.waiters[0]
		g.waiters = g.waiters[1:]
		t.mu.Unlock()
		// The gate stays held; ownership transfers to the woken waiter.
		close(next)
		return
	}
	g.held = false
	t.mu.Unlock()
}
