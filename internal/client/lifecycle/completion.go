package lifecycle

import (
	"context"
	"strings"
	"sync"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/constants"
)

// CompletionView rating step after the sender confirmed receipt
type CompletionView struct {
	api *client.API
	id  uint

	mu       sync.RWMutex
	delivery *client.Delivery
}

// NewCompletionView view for deliveryID
func NewCompletionView(api *client.API, deliveryID uint) *CompletionView {
	return &CompletionView{api: api, id: deliveryID}
}

// Load reads the delivery
func (v *CompletionView) Load(ctx context.Context) (*client.Delivery, error) {
	d, err := v.api.Delivery(ctx, v.id)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.delivery = cloneDelivery(d)
	v.mu.Unlock()
	return d, nil
}

// Delivery last loaded copy
func (v *CompletionView) Delivery() *client.Delivery {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneDelivery(v.delivery)
}

// Rate rates the partner once, 1..5, on a completed delivery
func (v *CompletionView) Rate(ctx context.Context, rating int, feedback string) (*client.Delivery, error) {
	if rating < 1 || rating > 5 {
		return nil, &client.ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	if d := v.Delivery(); d != nil {
		if d.Rating != nil {
			return nil, ErrAlreadyRated
		}
		if d.Status != constants.DeliveryStatusCompleted {
			return nil, ErrNotCompleted
		}
	}
	d, err := v.api.Rate(ctx, v.id, rating, strings.TrimSpace(feedback))
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.delivery = cloneDelivery(d)
	v.mu.Unlock()
	return d, nil
}
