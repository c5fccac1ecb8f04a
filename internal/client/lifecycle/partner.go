package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/client/poll"
	"github.com/parcelpal/internal/geo"
)

// PartnerView open requests around the partner and the delivery they carry
type PartnerView struct {
	tracker
	source geo.Source
	name   string
	phone  string
	opts   Options
	tasks  tasks

	nearbyMu sync.RWMutex
	nearby   []client.NearbyDelivery
	position *geo.Point
}

// NewPartnerView creates a stopped view; name and phone are shared with the sender on accept
func NewPartnerView(api *client.API, source geo.Source, name, phone string, opts Options) *PartnerView {
	return &PartnerView{
		tracker: tracker{api: api, role: RolePartner},
		source:  source,
		name:    strings.TrimSpace(name),
		phone:   strings.TrimSpace(phone),
		opts:    opts.withDefaults(),
	}
}

// Start polls nearby requests and the active delivery until Stop or ctx ends
func (v *PartnerView) Start(ctx context.Context) error {
	nearby := poll.New("partner_nearby", v.opts.NearbyInterval, v.RefreshNearby)
	nearby.OnError = v.recordError
	active := poll.New("partner_active", v.opts.ActiveInterval, v.refreshActive)
	active.OnError = v.recordError
	return v.tasks.start(ctx, nearby, active)
}

// Stop ends both poll loops
func (v *PartnerView) Stop() {
	v.tasks.stop()
}

// Running poll loops are active
func (v *PartnerView) Running() bool {
	return v.tasks.running()
}

// Refresh re-reads the active delivery once
func (v *PartnerView) Refresh(ctx context.Context) error {
	return v.refreshActive(ctx)
}

// RefreshNearby locates the partner and refetches the whole nearby list
func (v *PartnerView) RefreshNearby(ctx context.Context) error {
	if v.source == nil {
		return geo.ErrNoFix
	}
	fix, err := v.source.Current(ctx)
	if err != nil {
		return fmt.Errorf("locate partner: %w", err)
	}
	list, err := v.api.Nearby(ctx, fix.Point, v.opts.RadiusKM)
	if err != nil {
		return err
	}
	point := fix.Point
	v.nearbyMu.Lock()
	v.nearby = list
	v.position = &point
	v.nearbyMu.Unlock()
	v.notify()
	return nil
}

// Nearby closest first
func (v *PartnerView) Nearby() []client.NearbyDelivery {
	v.nearbyMu.RLock()
	defer v.nearbyMu.RUnlock()
	return slices.Clone(v.nearby)
}

// Position where the last nearby search was made
func (v *PartnerView) Position() (geo.Point, bool) {
	v.nearbyMu.RLock()
	defer v.nearbyMu.RUnlock()
	if v.position == nil {
		return geo.Point{}, false
	}
	return *v.position, true
}

// Accept takes a nearby request. client.IsConflict reports that another
// partner was faster; the list is left for the next poll to correct.
func (v *PartnerView) Accept(ctx context.Context, deliveryID uint) (*client.AcceptResult, error) {
	result, err := v.api.Accept(ctx, deliveryID, v.name, v.phone)
	if err != nil {
		return nil, err
	}
	v.nearbyMu.Lock()
	v.nearby = slices.DeleteFunc(slices.Clone(v.nearby), func(n client.NearbyDelivery) bool {
		return n.ID == deliveryID
	})
	v.nearbyMu.Unlock()
	v.apply(result.Delivery)
	return result, nil
}

// UploadItemPhoto stores the item photo for the sender to verify
func (v *PartnerView) UploadItemPhoto(ctx context.Context, filename string, content []byte) (*client.PhotoUpload, error) {
	id, err := v.activeID()
	if err != nil {
		return nil, err
	}
	upload, err := v.api.UploadImage(ctx, id, client.PhotoItem, filename, content)
	if err != nil {
		return nil, err
	}
	v.apply(upload.Delivery)
	return upload, nil
}

// UploadDeliveryPhoto stores the hand-over photo, then marks the delivery delivered
func (v *PartnerView) UploadDeliveryPhoto(ctx context.Context, filename string, content []byte) (*client.Delivery, error) {
	id, err := v.activeID()
	if err != nil {
		return nil, err
	}
	upload, err := v.api.UploadImage(ctx, id, client.PhotoDelivery, filename, content)
	if err != nil {
		return nil, err
	}
	v.apply(upload.Delivery)
	d, err := v.api.Deliver(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("photo uploaded, mark delivered failed: %w", err)
	}
	v.apply(d)
	return d, nil
}

// MarkInTransit partner left the pickup point
func (v *PartnerView) MarkInTransit(ctx context.Context) (*client.Delivery, error) {
	id, err := v.activeID()
	if err != nil {
		return nil, err
	}
	d, err := v.api.MarkInTransit(ctx, id)
	if err != nil {
		return nil, err
	}
	v.apply(d)
	return d, nil
}

// Cancel drops the active delivery; after pickup emergency must be set
func (v *PartnerView) Cancel(ctx context.Context, emergency bool, reason string) (*client.Delivery, error) {
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
	v.apply(d)
	return d, nil
}
