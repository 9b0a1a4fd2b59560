package core

// limiter.go caps how many imports run at once. Each import call holds one
// slot for its whole batch; a caller that cannot get a slot within maxWait is
// rejected with ErrTooManyImports. WaitForDrain lets shutdown wait for
// in-flight imports to finish writing their ledger rows.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyImports is returned when every import slot stays busy for maxWait.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

const (
	// DefaultMaxConcurrentImports is the default number of parallel imports.
	DefaultMaxConcurrentImports = 4

	// DefaultMaxImportWait is how long an import waits for a slot.
	DefaultMaxImportWait = 30 * time.Second

	drainPollInterval = 100 * time.Millisecond
)

// ImportLimiter is a counting semaphore over import calls.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewImportLimiter allows at most maxConcurrent imports at a time.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxImportWait
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to maxWait. Release must be called once
// for every successful Acquire.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// Release returns a slot.
func (l *ImportLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of imports holding a slot.
func (l *ImportLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a snapshot of the limiter for health endpoints.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current slot usage.
func (l *ImportLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
