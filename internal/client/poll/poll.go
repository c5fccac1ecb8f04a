// Package poll runs a function on a fixed interval, one call at a time,
// until the owner stops it.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/parcelpal/internal/logger"
)

// ErrRunning Start on a task that is already running
var ErrRunning = errors.New("poll task already running")

// Task a cancellable scheduled function. Ticks never overlap, so a response
// is always applied before the next request is issued.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
	OnError  func(err error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a task
func New(name string, interval time.Duration, fn func(ctx context.Context) error) *Task {
	return &Task{Name: name, Interval: interval, Fn: fn}
}

// Start runs Fn now and then every Interval until Stop or ctx ends
func (t *Task) Start(ctx context.Context) error {
	if t.Fn == nil || t.Interval <= 0 {
		return errors.New("poll task needs a function and a positive interval")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		select {
		case <-t.done:
		default:
			return ErrRunning
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
	return nil
}

// Stop cancels the in-flight call and waits for the loop to exit
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running loop is active
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Task) tick(ctx context.Context) {
	err := t.Fn(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	if t.OnError != nil {
		t.OnError(err)
		return
	}
	logger.Debugw("poll_tick_failed", "task", t.Name, "error", err)
}
