// Package chat is the client side of one delivery's chat: message list with
// optimistic sends, amount negotiation and live updates over the realtime
// stream.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/realtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultReconcileWindow = time.Second
	tempPrefix             = "temp-"
	manualPrefix           = "manual-"
)

var (
	// ErrChatNotReady the delivery has not been accepted yet
	ErrChatNotReady = errors.New("chat not created yet")
	// ErrNotOpen the panel has no chat loaded
	ErrNotOpen = errors.New("chat panel not open")
	// ErrAlreadyOpen Open was called twice
	ErrAlreadyOpen = errors.New("chat panel already open")
)

// Entry one row of the message list
type Entry struct {
	ID      string
	Message client.Message
	Pending bool // optimistic, not acknowledged yet
	Manual  bool // built from the api reply, realtime copy never arrived
}

// Option customizes a Panel
type Option func(*Panel)

// WithReconcileWindow how long a send waits for its realtime copy
func WithReconcileWindow(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.reconcile = d
		}
	}
}

// WithoutStream skips the realtime subscription
func WithoutStream() Option {
	return func(p *Panel) {
		p.noStream = true
	}
}

// Panel chat of one delivery for the signed-in user selfID
type Panel struct {
	api       *client.API
	selfID    uint
	names     *NameCache
	reconcile time.Duration
	noStream  bool

	mu       sync.Mutex
	chat     *client.Chat
	entries  []Entry
	errs     []error
	waiters  map[uint]chan struct{}
	onChange func()
	opening  bool
	closed   bool

	stream *client.Stream
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a closed panel
func New(api *client.API, selfID uint, opts ...Option) *Panel {
	p := &Panel{
		api:       api,
		selfID:    selfID,
		names:     NewNameCache(api),
		reconcile: defaultReconcileWindow,
		waiters:   make(map[uint]chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Names the panel's name cache
func (p *Panel) Names() *NameCache {
	return p.names
}

// OnChange fn runs after every list or chat change
func (p *Panel) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Open loads the chat of deliveryID and subscribes to its updates.
// ErrChatNotReady is expected before the delivery is accepted.
func (p *Panel) Open(ctx context.Context, deliveryID uint) error {
	p.mu.Lock()
	if p.chat != nil || p.opening {
		p.mu.Unlock()
		return ErrAlreadyOpen
	}
	p.opening = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.opening = false
		p.mu.Unlock()
	}()

	c, err := p.api.DeliveryChat(ctx, deliveryID)
	if client.IsNotFound(err) {
		return ErrChatNotReady
	}
	if err != nil {
		return err
	}
	messages, err := p.api.Messages(ctx, c.ID, 0, 0)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, Entry{ID: serverID(m.ID), Message: m})
	}
	p.mu.Lock()
	p.chat = c
	p.entries = entries
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	if !p.noStream {
		if err := p.subscribe(ctx, c.ID); err != nil {
			p.recordError(fmt.Errorf("live updates unavailable: %w", err))
		}
	}
	p.resolveNames(senders(messages, c))
	p.notify()
	logger.Debugw("chat_panel_opened", "delivery_id", deliveryID, "chat_id", c.ID, "messages", len(messages))
	return nil
}

func (p *Panel) subscribe(ctx context.Context, chatID uint) error {
	stream, err := p.api.OpenStream(ctx)
	if err != nil {
		return err
	}
	if err := stream.Subscribe(realtime.MessagesTopic(chatID), realtime.ChatTopic(chatID)); err != nil {
		_ = stream.Close()
		return err
	}
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()
	if !p.spawn(func() { p.consume(stream) }) {
		_ = stream.Close()
	}
	return nil
}

func (p *Panel) consume(stream *client.Stream) {
	for evt := range stream.Events() {
		switch evt.Type {
		case realtime.TypeMessageCreated:
			var m client.Message
			if err := evt.Decode(&m); err != nil {
				logger.Debugw("chat_event_decode_failed", "type", evt.Type, "error", err)
				continue
			}
			p.receive(m)
		case realtime.TypeChatUpdated:
			var c client.Chat
			if err := evt.Decode(&c); err != nil {
				logger.Debugw("chat_event_decode_failed", "type", evt.Type, "error", err)
				continue
			}
			p.setChat(&c)
		case realtime.TypeError:
			p.recordError(fmt.Errorf("realtime %s: %s", evt.Topic, string(evt.Data)))
		}
	}
	if err := stream.Err(); err != nil {
		p.recordError(fmt.Errorf("live updates stopped: %w", err))
	}
}

// receive adds a server message, replacing its manual stand-in
func (p *Panel) receive(m client.Message) {
	p.mu.Lock()
	if p.chat == nil || m.ChatID != p.chat.ID {
		p.mu.Unlock()
		return
	}
	id := serverID(m.ID)
	if p.indexLocked(id) >= 0 {
		p.mu.Unlock()
		return
	}
	entry := Entry{ID: id, Message: m}
	if i := p.indexLocked(manualPrefix + id); i >= 0 {
		p.entries[i] = entry
	} else {
		p.entries = append(p.entries, entry)
	}
	if ch, ok := p.waiters[m.ID]; ok {
		close(ch)
		delete(p.waiters, m.ID)
	}
	p.mu.Unlock()

	if !m.IsSystem {
		p.resolveNames([]uint{m.SenderID})
	}
	p.notify()
}

// Send posts text. A pending entry shows at once; it is dropped with a
// recorded error when the call fails. After success the realtime copy is
// awaited for the reconcile window, else the api reply is shown instead.
func (p *Panel) Send(ctx context.Context, text string) (*client.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &client.ValidationError{Field: "content", Message: "message is empty"}
	}
	chat := p.Chat()
	if chat == nil {
		return nil, ErrNotOpen
	}

	tempID := tempPrefix + uuid.NewString()
	p.mu.Lock()
	p.entries = append(p.entries, Entry{
		ID:      tempID,
		Pending: true,
		Message: client.Message{ChatID: chat.ID, SenderID: p.selfID, Content: text, CreatedAt: time.Now()},
	})
	p.mu.Unlock()
	p.notify()

	m, err := p.api.SendMessage(ctx, chat.ID, text)

	p.mu.Lock()
	p.removeLocked(tempID)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("message not sent: %w", err))
		p.mu.Unlock()
		p.notify()
		return nil, err
	}
	if p.indexLocked(serverID(m.ID)) >= 0 {
		p.mu.Unlock()
		p.notify()
		return m, nil
	}
	arrived := make(chan struct{})
	p.waiters[m.ID] = arrived
	panelCtx := p.ctx
	p.mu.Unlock()
	p.notify()

	sent := *m
	p.spawn(func() { p.reconcileSend(panelCtx, sent, arrived) })
	return m, nil
}

func (p *Panel) reconcileSend(ctx context.Context, m client.Message, arrived chan struct{}) {
	timer := time.NewTimer(p.reconcile)
	defer timer.Stop()
	select {
	case <-arrived:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	p.mu.Lock()
	delete(p.waiters, m.ID)
	id := serverID(m.ID)
	if p.indexLocked(id) >= 0 || p.indexLocked(manualPrefix+id) >= 0 {
		p.mu.Unlock()
		return
	}
	p.entries = append(p.entries, Entry{ID: manualPrefix + id, Message: m, Manual: true})
	p.mu.Unlock()
	logger.Debugw("chat_message_reconciled_manually", "message_id", m.ID, "chat_id", m.ChatID)
	p.notify()
}

// Refresh fetches messages newer than the last one shown
func (p *Panel) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.chat == nil {
		p.mu.Unlock()
		return ErrNotOpen
	}
	chatID := p.chat.ID
	var lastID uint
	for _, e := range p.entries {
		if !e.Pending && e.Message.ID > lastID {
			lastID = e.Message.ID
		}
	}
	p.mu.Unlock()

	messages, err := p.api.Messages(ctx, chatID, lastID, 0)
	if err != nil {
		return err
	}
	for _, m := range messages {
		p.receive(m)
	}
	c, err := p.api.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	p.setChat(c)
	return nil
}

// Pin proposes amount
func (p *Panel) Pin(ctx context.Context, amount decimal.Decimal) (*client.Chat, error) {
	chat := p.Chat()
	if chat == nil {
		return nil, ErrNotOpen
	}
	updated, err := p.api.PinAmount(ctx, chat.ID, amount)
	if err != nil {
		p.recordError(fmt.Errorf("pin failed: %w", err))
		return nil, err
	}
	p.setChat(updated)
	return updated, nil
}

// Confirm accepts the other party's pinned amount
func (p *Panel) Confirm(ctx context.Context) (*client.Chat, error) {
	chat := p.Chat()
	if chat == nil {
		return nil, ErrNotOpen
	}
	updated, err := p.api.ConfirmAmount(ctx, chat.ID)
	if err != nil {
		p.recordError(fmt.Errorf("confirm failed: %w", err))
		return nil, err
	}
	p.setChat(updated)
	return updated, nil
}

// CanConfirm a pin by the other party waits for confirmation
func (p *Panel) CanConfirm() bool {
	c := p.Chat()
	return c != nil && c.AgreedAmount != nil && !c.Confirmed && c.PinnedBy != nil && *c.PinnedBy != p.selfID
}

// Chat current negotiation state
func (p *Panel) Chat() *client.Chat {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chat == nil {
		return nil
	}
	c := *p.chat
	return &c
}

// Messages list in display order
func (p *Panel) Messages() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.entries)
}

// Errors visible failures, oldest first
func (p *Panel) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.errs)
}

// DismissErrors clears the visible failures
func (p *Panel) DismissErrors() {
	p.mu.Lock()
	p.errs = nil
	p.mu.Unlock()
	p.notify()
}

// SenderName display name for e, never blocking
func (p *Panel) SenderName(e Entry) string {
	switch {
	case e.Message.IsSystem:
		return "System"
	case e.Message.SenderID == p.selfID:
		return "You"
	}
	if name, ok := p.names.Name(e.Message.SenderID); ok {
		return name
	}
	return "User"
}

// Close drops the subscription, waits for background work and clears the name cache
func (p *Panel) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		stream, cancel := p.stream, p.cancel
		p.stream = nil
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if stream != nil {
			err = stream.Close()
		}
		p.wg.Wait()
		p.names.Clear()
	})
	return err
}

func (p *Panel) setChat(c *client.Chat) {
	p.mu.Lock()
	if p.chat == nil || c.ID != p.chat.ID {
		p.mu.Unlock()
		return
	}
	copied := *c
	p.chat = &copied
	p.mu.Unlock()
	p.notify()
}

func (p *Panel) recordError(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	logger.Debugw("chat_panel_error", "error", err)
	p.notify()
}

// resolveNames fills the name cache in the background
func (p *Panel) resolveNames(ids []uint) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	p.spawn(func() {
		if err := p.names.Prime(ctx, ids); err != nil {
			logger.Debugw("chat_name_lookup_failed", "error", err)
		}
		p.notify()
	})
}

// spawn runs fn in a goroutine Close waits for; false once closed
func (p *Panel) spawn(fn func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		fn()
	}()
	return true
}

func (p *Panel) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Panel) indexLocked(id string) int {
	return slices.IndexFunc(p.entries, func(e Entry) bool { return e.ID == id })
}

func (p *Panel) removeLocked(id string) {
	p.entries = slices.DeleteFunc(p.entries, func(e Entry) bool { return e.ID == id })
}

func serverID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func senders(messages []client.Message, c *client.Chat) []uint {
	ids := []uint{c.SenderID, c.PartnerID}
	for _, m := range messages {
		if !m.IsSystem {
			ids = append(ids, m.SenderID)
		}
	}
	return ids
}
