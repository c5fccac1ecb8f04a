// Package lifecycle drives one delivery through its states from the sender
// and the partner side. Views poll the api, hold the last good copy and
// expose one method per user action.
package lifecycle

import (
	"errors"
	"slices"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/constants"
)

// Role side a view acts for
type Role string

const (
	RoleSender  Role = constants.RoleSender
	RolePartner Role = constants.RolePartner
)

// Phase what the user sees and can do next
type Phase string

const (
	PhaseNone                 Phase = "none"
	PhaseWaitingForPartner    Phase = "waiting_for_partner"
	PhaseAvailable            Phase = "available"
	PhaseAwaitingItemPhoto    Phase = "awaiting_item_photo"
	PhaseVerifyItem           Phase = "verify_item"
	PhaseAwaitingVerification Phase = "awaiting_verification"
	PhaseInTransit            Phase = "in_transit"
	PhaseConfirmReceipt       Phase = "confirm_receipt"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseRate                 Phase = "rate"
	PhaseDone                 Phase = "done"
	PhaseDisputed             Phase = "disputed"
	PhaseCancelled            Phase = "cancelled"
)

var (
	// ErrNoActiveDelivery the action needs an active delivery
	ErrNoActiveDelivery = errors.New("no active delivery")
	// ErrAlreadyRated the delivery carries a rating
	ErrAlreadyRated = errors.New("delivery already rated")
	// ErrNotCompleted rating before completion
	ErrNotCompleted = errors.New("delivery is not completed")
)

// PhaseOf maps a delivery status to the phase shown to role
func PhaseOf(d *client.Delivery, role Role) Phase {
	if d == nil {
		return PhaseNone
	}
	sender := role == RoleSender
	switch d.Status {
	case constants.DeliveryStatusPending:
		if sender {
			return PhaseWaitingForPartner
		}
		return PhaseAvailable
	case constants.DeliveryStatusAccepted:
		if d.ItemPhotoURL == "" {
			return PhaseAwaitingItemPhoto
		}
		if sender {
			return PhaseVerifyItem
		}
		return PhaseAwaitingVerification
	case constants.DeliveryStatusPickedUp, constants.DeliveryStatusInTransit:
		return PhaseInTransit
	case constants.DeliveryStatusDelivered:
		if sender {
			return PhaseConfirmReceipt
		}
		return PhaseAwaitingConfirmation
	case constants.DeliveryStatusCompleted:
		if sender && d.Rating == nil {
			return PhaseRate
		}
		return PhaseDone
	case constants.DeliveryStatusDisputed:
		return PhaseDisputed
	case constants.DeliveryStatusCancelled:
		return PhaseCancelled
	}
	return PhaseNone
}

// IsActive role still works on d
func IsActive(d *client.Delivery, role Role) bool {
	if d == nil {
		return false
	}
	if role == RoleSender {
		return slices.Contains(constants.ActiveSenderStatuses, d.Status)
	}
	return slices.Contains(constants.ActivePartnerStatuses, d.Status)
}

// NeedsEmergency cancelling d needs the emergency path
func NeedsEmergency(d *client.Delivery) bool {
	return d != nil && (d.Status == constants.DeliveryStatusPickedUp || d.Status == constants.DeliveryStatusInTransit)
}

func cloneDelivery(d *client.Delivery) *client.Delivery {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// upsert replaces the row with d.ID in place, or puts d first
func upsert(list []client.Delivery, d client.Delivery) []client.Delivery {
	for i := range list {
		if list[i].ID == d.ID {
			out := slices.Clone(list)
			out[i] = d
			return out
		}
	}
	return append([]client.Delivery{d}, list...)
}
