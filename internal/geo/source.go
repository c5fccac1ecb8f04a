package geo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoFix no coordinates known yet
var ErrNoFix = errors.New("no location fix available")

// Fix one reported coordinate
type Fix struct {
	Point
	Accuracy float64   `json:"accuracy,omitempty"` // meters
	At       time.Time `json:"at"`
}

// Source produces one-shot or continuously updated coordinates
type Source interface {
	Current(ctx context.Context) (Fix, error)
	// Watch streams fixes until ctx ends; the channel is closed afterwards.
	Watch(ctx context.Context) <-chan Fix
}

// StaticSource always reports the same point
type StaticSource struct {
	Point Point
}

// Current returns the fixed point
func (s StaticSource) Current(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	if !s.Point.Valid() {
		return Fix{}, ErrNoFix
	}
	return Fix{Point: s.Point, At: time.Now()}, nil
}

// Watch emits the point once and closes when ctx ends
func (s StaticSource) Watch(ctx context.Context) <-chan Fix {
	ch := make(chan Fix, 1)
	if fix, err := s.Current(ctx); err == nil {
		ch <- fix
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// Tracker keeps the latest fix per user and fans updates out to watchers
type Tracker struct {
	mu       sync.RWMutex
	latest   map[uint]Fix
	watchers map[uint]map[chan Fix]struct{}
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		latest:   make(map[uint]Fix),
		watchers: make(map[uint]map[chan Fix]struct{}),
	}
}

// Report stores fix for userID and notifies watchers without blocking
func (t *Tracker) Report(userID uint, fix Fix) {
	if t == nil || userID == 0 || !fix.Point.Valid() {
		return
	}
	if fix.At.IsZero() {
		fix.At = time.Now()
	}
	t.mu.Lock()
	t.latest[userID] = fix
	for ch := range t.watchers[userID] {
		select {
		case ch <- fix:
		default:
		}
	}
	t.mu.Unlock()
}

// Latest returns the last fix for userID
func (t *Tracker) Latest(userID uint) (Fix, bool) {
	if t == nil {
		return Fix{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fix, ok := t.latest[userID]
	return fix, ok
}

// For returns a Source bound to one user
func (t *Tracker) For(userID uint) Source {
	return &userSource{tracker: t, userID: userID}
}

func (t *Tracker) watch(ctx context.Context, userID uint) <-chan Fix {
	ch := make(chan Fix, 8)
	t.mu.Lock()
	set, ok := t.watchers[userID]
	if !ok {
		set = make(map[chan Fix]struct{})
		t.watchers[userID] = set
	}
	set[ch] = struct{}{}
	if fix, ok := t.latest[userID]; ok {
		ch <- fix
	}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.watchers[userID], ch)
		if len(t.watchers[userID]) == 0 {
			delete(t.watchers, userID)
		}
		close(ch)
		t.mu.Unlock()
	}()
	return ch
}

type userSource struct {
	tracker *Tracker
	userID  uint
}

func (s *userSource) Current(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	fix, ok := s.tracker.Latest(s.userID)
	if !ok {
		return Fix{}, ErrNoFix
	}
	return fix, nil
}

func (s *userSource) Watch(ctx context.Context) <-chan Fix {
	return s.tracker.watch(ctx, s.userID)
}
