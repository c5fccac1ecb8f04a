package constants

// Delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusAccepted  = "accepted"
	DeliveryStatusPickedUp  = "picked_up"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusCompleted = "completed"
	DeliveryStatusCancelled = "cancelled"
	DeliveryStatusDisputed  = "disputed"
)

// ActiveSenderStatuses statuses a sender still tracks
var ActiveSenderStatuses = []string{
	DeliveryStatusPending,
	DeliveryStatusAccepted,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusDelivered,
}

// ActivePartnerStatuses statuses a partner still works on
var ActivePartnerStatuses = []string{
	DeliveryStatusAccepted,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
}

// Cancellation actors
const (
	CancelledBySender  = "sender"
	CancelledByPartner = "delivery_partner"
	CancelledBySystem  = "system"
)

// Default cancellation reasons
const (
	CancelReasonSender           = "Cancelled by sender"
	CancelReasonSenderEmergency  = "Emergency cancellation by sender"
	CancelReasonPartner          = "Cancelled by delivery partner"
	CancelReasonPartnerEmergency = "Emergency cancellation by delivery partner"
	CancelReasonExpired          = "Expired without a delivery partner"
)

// Delivery photo types
const (
	PhotoTypeItem     = "item"
	PhotoTypeDelivery = "delivery"
)

// Upload scenes
const (
	UploadSceneDeliveries = "deliveries"
)

// Actor roles relative to one delivery
const (
	RoleSender    = "sender"
	RolePartner   = "partner"
	RoleCandidate = "candidate" // signed in, not a participant
)

// Delivery actions checked by the actor policy
const (
	ActionView       = "view"
	ActionAccept     = "accept"
	ActionCancel     = "cancel"
	ActionVerifyItem = "verify_item"
	ActionUpload     = "upload"
	ActionInTransit  = "in_transit"
	ActionDeliver    = "deliver"
	ActionComplete   = "complete"
	ActionDispute    = "dispute"
	ActionRate       = "rate"
	ActionChat       = "chat"
)

// Reward grant kinds
const (
	PointGrantDelivery = "delivery"
	PointGrantFiveStar = "five_star"
	PointGrantOnTime   = "on_time"
)

// Default user profile name
const DefaultFullName = "User"

// Default coordinates (New Delhi)
const (
	DefaultMapLat = 28.6139
	DefaultMapLng = 77.2090
)

// Queue names
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// Async task types
const (
	TaskDeliveryCompleted = "delivery:completed"
	TaskDeliveryRated     = "delivery:rated"
	TaskDeliveryNotify    = "delivery:notify_nearby"
)
