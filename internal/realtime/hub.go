package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/parcelpal/internal/logger"
)

const defaultSendBuffer = 64

// Publisher is what services depend on to push events
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Bridge forwards events between instances
type Bridge interface {
	Forward(ctx context.Context, evt Event) error
}

// Hub topic registry. Publish never blocks on slow subscribers.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscription]struct{}
	buffer  int
	bridge  Bridge
	dropped atomic.Int64
}

// NewHub creates a hub; buffer is the per-subscription queue size
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// SetBridge routes Publish through b; b delivers back via Dispatch
func (h *Hub) SetBridge(b Bridge) {
	h.mu.Lock()
	h.bridge = b
	h.mu.Unlock()
}

// Subscribe registers a subscription on topics
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan Event, h.buffer),
		topics: make(map[string]struct{}),
	}
	sub.Add(topics...)
	return sub
}

// Publish sends evt to every subscriber of evt.Topic
func (h *Hub) Publish(ctx context.Context, evt Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()
	if bridge != nil {
		err := bridge.Forward(ctx, evt)
		if err == nil {
			return
		}
		logger.Warnw("realtime_bridge_forward_failed", "topic", evt.Topic, "error", err)
	}
	h.Dispatch(evt)
}

// Emit builds and publishes an event, logging marshal failures
func (h *Hub) Emit(ctx context.Context, eventType, topic string, data interface{}) {
	if h == nil {
		return
	}
	evt, err := NewEvent(eventType, topic, data)
	if err != nil {
		logger.Warnw("realtime_event_build_failed", "type", eventType, "topic", topic, "error", err)
		return
	}
	h.Publish(ctx, evt)
}

// Dispatch delivers evt to local subscribers only
func (h *Hub) Dispatch(evt Event) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.topics[evt.Topic]))
	for sub := range h.topics[evt.Topic] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.offer(evt) {
			h.dropped.Add(1)
		}
	}
}

// Dropped events discarded because a subscriber queue was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount subscribers of one topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) add(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.topics[topic] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.topics[topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscription a set of topics drained through one channel
type Subscription struct {
	hub    *Hub
	ch     chan Event
	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// C event stream; closed by Close
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Add subscribes to more topics
func (s *Subscription) Add(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, t := range topics {
		if t == "" {
			continue
		}
		if _, ok := s.topics[t]; ok {
			continue
		}
		s.topics[t] = struct{}{}
		s.hub.add(s, t)
	}
}

// Remove unsubscribes from topics
func (s *Subscription) Remove(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		if _, ok := s.topics[t]; !ok {
			continue
		}
		delete(s.topics, t)
		s.hub.remove(s, t)
	}
}

// Topics currently subscribed
func (s *Subscription) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// Close removes every topic and closes C
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for t := range s.topics {
		s.hub.remove(s, t)
	}
	s.topics = map[string]struct{}{}
	close(s.ch)
	s.mu.Unlock()
}

func (s *Subscription) offer(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}
