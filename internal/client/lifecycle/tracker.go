package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/client/poll"
	"github.com/parcelpal/internal/logger"
)

const (
	defaultActiveInterval = 10 * time.Second
	defaultListInterval   = 30 * time.Second
	defaultNearbyInterval = 10 * time.Second
	defaultRadiusKM       = 10
	defaultPageSize       = 20
)

// Options poll intervals and list sizes; zero values use the defaults
type Options struct {
	ActiveInterval time.Duration
	ListInterval   time.Duration
	NearbyInterval time.Duration
	RadiusKM       float64
	PageSize       int
}

func (o Options) withDefaults() Options {
	if o.ActiveInterval <= 0 {
		o.ActiveInterval = defaultActiveInterval
	}
	if o.ListInterval <= 0 {
		o.ListInterval = defaultListInterval
	}
	if o.NearbyInterval <= 0 {
		o.NearbyInterval = defaultNearbyInterval
	}
	if o.RadiusKM <= 0 {
		o.RadiusKM = defaultRadiusKM
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	return o
}

// tracker follows the caller's current delivery for one role
type tracker struct {
	api  *client.API
	role Role

	mu       sync.RWMutex
	current  *client.Delivery
	err      error
	onChange func()
}

// Current last known delivery, active or just finished
func (t *tracker) Current() *client.Delivery {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneDelivery(t.current)
}

// Active current delivery while the role still works on it
func (t *tracker) Active() *client.Delivery {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !IsActive(t.current, t.role) {
		return nil
	}
	return cloneDelivery(t.current)
}

// Phase of the current delivery
func (t *tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return PhaseOf(t.current, t.role)
}

// Err last poll failure, cleared by the next success
func (t *tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// OnChange fn runs after every state change
func (t *tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// refreshActive picks the newest active delivery; when none is left the
// current one is re-read so its final status shows.
func (t *tracker) refreshActive(ctx context.Context) error {
	list, _, err := t.api.ListDeliveries(ctx, client.ListOptions{Role: string(t.role), ActiveOnly: true, PageSize: 1})
	if err != nil {
		return err
	}
	if len(list) > 0 {
		t.set(&list[0])
		return nil
	}
	current := t.Current()
	if current == nil || !IsActive(current, t.role) {
		t.set(current)
		return nil
	}
	d, err := t.api.Delivery(ctx, current.ID)
	if client.IsNotFound(err) || client.CodeOf(err) == client.CodeForbidden {
		t.set(nil)
		return nil
	}
	if err != nil {
		return err
	}
	t.set(d)
	return nil
}

func (t *tracker) set(d *client.Delivery) {
	t.mu.Lock()
	t.current = cloneDelivery(d)
	t.err = nil
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// apply stores a mutation result
func (t *tracker) apply(d *client.Delivery) {
	if d == nil {
		return
	}
	t.set(d)
}

func (t *tracker) recordError(err error) {
	t.mu.Lock()
	t.err = err
	fn := t.onChange
	t.mu.Unlock()
	logger.Debugw("client_view_poll_failed", "role", string(t.role), "error", err)
	if fn != nil {
		fn()
	}
}

func (t *tracker) notify() {
	t.mu.RLock()
	fn := t.onChange
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// activeID id of the active delivery or ErrNoActiveDelivery
func (t *tracker) activeID() (uint, error) {
	d := t.Active()
	if d == nil {
		return 0, ErrNoActiveDelivery
	}
	return d.ID, nil
}

// tasks poll loops owned by one view
type tasks struct {
	mu   sync.Mutex
	list []*poll.Task
}

func (g *tasks) start(ctx context.Context, list ...*poll.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.list != nil {
		return poll.ErrRunning
	}
	for i, task := range list {
		if err := task.Start(ctx); err != nil {
			for _, started := range list[:i] {
				started.Stop()
			}
			return err
		}
	}
	g.list = list
	return nil
}

func (g *tasks) stop() {
	g.mu.Lock()
	list := g.list
	g.list = nil
	g.mu.Unlock()
	for _, task := range list {
		task.Stop()
	}
}

func (g *tasks) running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.list != nil
}
