package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Budget counts API calls across a run and pauses after every Every calls.
// It is safe for concurrent use by multiple goroutines.
type Budget struct {
	mu    sync.Mutex
	every int
	pause time.Duration
	calls int64
	wait  WaitFunc
}

// NewBudget creates a budget pausing for pause after every `every` calls.
// If every is <= 0 the budget only counts.
func NewBudget(every int, pause time.Duration) *Budget {
	return &Budget{every: every, pause: pause, wait: Sleep}
}

// WithWait replaces the wait implementation, mostly for tests.
func (b *Budget) WithWait(w WaitFunc) *Budget {
	b.wait = w
	return b
}

// Spend records one call and blocks for the pause when the counter reaches a multiple
// of every.
func (b *Budget) Spend(ctx context.Context) error {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()

	if b.every > 0 && n%int64(b.every) == 0 {
		return b.wait(ctx, b.pause)
	}
	return ctx.Err()
}

// Calls returns the number of calls spent so far.
func (b *Budget) Calls() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Wait blocks for d using the budget's wait implementation.
func (b *Budget) Wait(ctx context.Context, d time.Duration) error {
	return b.wait(ctx, d)
}
