package lifecycle

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/client/poll"
)

// SenderView the sender's active delivery and request history
type SenderView struct {
	tracker
	opts  Options
	tasks tasks

	historyMu sync.RWMutex
	history   []client.Delivery
}

// NewSenderView creates a stopped view
func NewSenderView(api *client.API, opts Options) *SenderView {
	return &SenderView{
		tracker: tracker{api: api, role: RoleSender},
		opts:    opts.withDefaults(),
	}
}

// Start polls the active delivery and the history list until Stop or ctx ends
func (v *SenderView) Start(ctx context.Context) error {
	active := poll.New("sender_active", v.opts.ActiveInterval, v.refreshActive)
	active.OnError = v.recordError
	history := poll.New("sender_history", v.opts.ListInterval, v.RefreshHistory)
	history.OnError = v.recordError
	return v.tasks.start(ctx, active, history)
}

// Stop ends both poll loops
func (v *SenderView) Stop() {
	v.tasks.stop()
}

// Running poll loops are active
func (v *SenderView) Running() bool {
	return v.tasks.running()
}

// Refresh re-reads the active delivery once
func (v *SenderView) Refresh(ctx context.Context) error {
	return v.refreshActive(ctx)
}

// RefreshHistory re-reads the first page of the sender's deliveries
func (v *SenderView) RefreshHistory(ctx context.Context) error {
	list, _, err := v.api.ListDeliveries(ctx, client.ListOptions{Role: string(RoleSender), PageSize: v.opts.PageSize})
	if err != nil {
		return err
	}
	v.historyMu.Lock()
	v.history = list
	v.historyMu.Unlock()
	v.notify()
	return nil
}

// History newest first
func (v *SenderView) History() []client.Delivery {
	v.historyMu.RLock()
	defer v.historyMu.RUnlock()
	return slices.Clone(v.history)
}

// Create posts a new request; the form is validated before any call
func (v *SenderView) Create(ctx context.Context, form client.DeliveryForm) (*client.Delivery, error) {
	d, err := v.api.CreateDelivery(ctx, form)
	if err != nil {
		return nil, err
	}
	v.record(d)
	return d, nil
}

// VerifyItem approves or rejects the partner's item photo
func (v *SenderView) VerifyItem(ctx context.Context, approve bool) (*client.Delivery, error) {
	id, err := v.activeID()
	if err != nil {
		return nil, err
	}
	d, err := v.api.VerifyItem(ctx, id, approve)
	if err != nil {
		return nil, err
	}
	v.record(d)
	return d, nil
}

// Complete confirms receipt
func (v *SenderView) Complete(ctx context.Context) (*client.Delivery, error) {
	return v.act(ctx, v.api.Complete)
}

// Dispute rejects receipt
func (v *SenderView) Dispute(ctx context.Context) (*client.Delivery, error) {
	return v.act(ctx, v.api.Dispute)
}

// Cancel cancels the active delivery; after pickup emergency must be set
func (v *SenderView) Cancel(ctx context.Context, emergency bool, reason string) (*client.Delivery, error) {
	active := v.Active()
	if active == nil {
		return nil, ErrNoActiveDelivery
	}
	if NeedsEmergency(active) && !emergency {
		return nil, &client.ValidationError{Field: "emergency", Message: "emergency confirmation is required after pickup"}
	}
	d, err := v.api.Cancel(ctx, active.ID, client.CancelOptions{Reason: strings.TrimSpace(reason), Emergency: emergency})
	if err != nil {
		return nil, err
	}
	v.record(d)
	return d, nil
}

func (v *SenderView) act(ctx context.Context, fn func(context.Context, uint) (*client.Delivery, error)) (*client.Delivery, error) {
	id, err := v.activeID()
	if err != nil {
		return nil, err
	}
	d, err := fn(ctx, id)
	if err != nil {
		return nil, err
	}
	v.record(d)
	return d, nil
}

func (v *SenderView) record(d *client.Delivery) {
	v.historyMu.Lock()
	v.history = upsert(v.history, *d)
	v.historyMu.Unlock()
	v.apply(d)
}
