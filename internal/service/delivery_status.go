package service

import (
	"strings"

	"github.com/parcelpal/internal/constants"
)

// allowedTransitions current status -> statuses reachable from it
var allowedTransitions = map[string][]string{
	constants.DeliveryStatusPending: {
		constants.DeliveryStatusAccepted,
		constants.DeliveryStatusCancelled,
	},
	constants.DeliveryStatusAccepted: {
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusCancelled,
	},
	constants.DeliveryStatusPickedUp: {
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusDelivered,
		constants.DeliveryStatusCancelled,
	},
	constants.DeliveryStatusInTransit: {
		constants.DeliveryStatusDelivered,
		constants.DeliveryStatusCancelled,
	},
	constants.DeliveryStatusDelivered: {
		constants.DeliveryStatusCompleted,
		constants.DeliveryStatusDisputed,
	},
}

func canTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf statuses that may move to `to`
func sourcesOf(to string) []string {
	result := make([]string, 0, 4)
	for from, nexts := range allowedTransitions {
		for _, next := range nexts {
			if next == to {
				result = append(result, from)
				break
			}
		}
	}
	return result
}

func isTerminalStatus(status string) bool {
	_, open := allowedTransitions[status]
	return !open
}

// requiresEmergency the item is already with the partner
func requiresEmergency(status string) bool {
	return status == constants.DeliveryStatusPickedUp || status == constants.DeliveryStatusInTransit
}

func isCancellable(status string) bool {
	return canTransition(status, constants.DeliveryStatusCancelled)
}

// defaultCancelReason used when the caller sends no reason
func defaultCancelReason(cancelledBy string, emergency bool) string {
	switch cancelledBy {
	case constants.CancelledByPartner:
		if emergency {
			return constants.CancelReasonPartnerEmergency
		}
		return constants.CancelReasonPartner
	case constants.CancelledBySystem:
		return constants.CancelReasonExpired
	default:
		if emergency {
			return constants.CancelReasonSenderEmergency
		}
		return constants.CancelReasonSender
	}
}

func normalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
