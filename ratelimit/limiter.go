// Package ratelimit gates delivery attempts per target with a fixed
// one-minute window.
//
// Each target has a counter and a window start. The first call after the
// window elapsed resets both; calls are allowed while the counter is below
// the target's per-minute cap. A rejected call does not consume capacity.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is the length of one rate-limit window.
const Window = time.Minute

// Limiter decides whether a target may receive another delivery attempt.
// A limit of zero or less means unlimited.
type Limiter interface {
	Allow(ctx context.Context, targetID string, limit int) (bool, error)
}

// Refunder is implemented by limiters that can return a slot taken by Allow
// when the delivery it was taken for could not be created.
type Refunder interface {
	Refund(ctx context.Context, targetID string) error
}

// Memory is an in-process Limiter. Counts are per engine instance; running
// several instances multiplies the effective cap. Use Redis to share windows.
type Memory struct {
	clock clockwork.Clock

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemory creates an in-process limiter reading time from clock.
// A nil clock uses the wall clock.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:   clock,
		windows: make(map[string]*window),
	}
}

// Allow implements Limiter. It never returns an error.
func (l *Memory) Allow(_ context.Context, targetID string, limit int) (bool, error) {
	return l.allow(targetID, limit), nil
}

func (l *Memory) allow(targetID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(targetID)
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// Refund implements Refunder. A window that rolled over since the slot was
// taken is left alone.
func (l *Memory) Refund(_ context.Context, targetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(targetID)
	if w.count > 0 {
		w.count--
	}
	return nil
}

// Remaining returns how many calls the target has left in its current window.
func (l *Memory) Remaining(targetID string, limit int) int {
	if limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(targetID)
	if w.count >= limit {
		return 0
	}
	return limit - w.count
}

// Reset drops the window for a target.
func (l *Memory) Reset(targetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, targetID)
}

// current returns the target's window, rolling it over when it has elapsed.
// Callers hold l.mu.
func (l *Memory) current(targetID string) *window {
	now := l.clock.Now()
	w, ok := l.windows[targetID]
	if !ok {
		w = &window{start: now}
		l.windows[targetID] = w
		return w
	}
	if now.Sub(w.start) >= Window {
		w.start = now
		w.count = 0
	}
	return w
}
