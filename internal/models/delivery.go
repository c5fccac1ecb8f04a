package models

import (
	"time"
)

// Delivery request row. Cancelled and disputed are terminal statuses, rows are never removed.
type Delivery struct {
	ID                 uint       `gorm:"primarykey" json:"id"`
	SenderID           uint       `gorm:"index;not null" json:"sender_id"`
	DeliveryPartnerID  *uint      `gorm:"index" json:"delivery_partner_id"`
	PartnerName        string     `gorm:"type:varchar(120)" json:"partner_name,omitempty"`
	PartnerPhone       string     `gorm:"type:varchar(32)" json:"partner_phone,omitempty"`
	ItemName           string     `gorm:"type:varchar(200);not null" json:"item_name"`
	Phone              string     `gorm:"type:varchar(32);not null" json:"phone"`
	DeliveryAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_amount"`
	TimeLimit          int        `gorm:"not null;default:60" json:"time_limit"` // minutes
	SourceLat          float64    `gorm:"not null" json:"source_lat"`
	SourceLng          float64    `gorm:"not null" json:"source_lng"`
	SourceAddress      string     `gorm:"type:text" json:"source_address"`
	DestinationLat     float64    `gorm:"not null" json:"destination_lat"`
	DestinationLng     float64    `gorm:"not null" json:"destination_lng"`
	DestinationAddress string     `gorm:"type:text" json:"destination_address"`
	Distance           float64    `gorm:"not null;default:0" json:"distance"` // km, fixed at creation
	Status             string     `gorm:"index;not null" json:"status"`
	ItemPhotoURL       string     `gorm:"type:text" json:"item_photo_url"`
	DeliveryPhotoURL   string     `gorm:"type:text" json:"delivery_photo_url"`
	ItemVerified       bool       `gorm:"not null;default:false" json:"item_verified"`
	ItemVerifiedAt     *time.Time `json:"item_verified_at"`
	AcceptedAt         *time.Time `json:"accepted_at"`
	PickedUpAt         *time.Time `json:"picked_up_at"`
	DeliveredAt        *time.Time `json:"delivered_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancelReason       string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CancelledBy        string     `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"` // sender / delivery_partner / system
	Rating             *int       `json:"rating"`
	RatedAt            *time.Time `json:"rated_at"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName deliveries
func (Delivery) TableName() string {
	return "deliveries"
}

// HasPartner reports an assigned partner
func (d *Delivery) HasPartner() bool {
	return d != nil && d.DeliveryPartnerID != nil && *d.DeliveryPartnerID != 0
}

// IsParticipant sender or assigned partner
func (d *Delivery) IsParticipant(userID uint) bool {
	if d == nil || userID == 0 {
		return false
	}
	if d.SenderID == userID {
		return true
	}
	return d.HasPartner() && *d.DeliveryPartnerID == userID
}

// IsPartner assigned partner check
func (d *Delivery) IsPartner(userID uint) bool {
	return d.HasPartner() && *d.DeliveryPartnerID == userID
}
