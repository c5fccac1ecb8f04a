package repository

import "time"

// DeliveryListFilter list query for one participant
type DeliveryListFilter struct {
	Page       int
	PageSize   int
	SenderID   uint
	PartnerID  uint
	Statuses   []string
	CreatedTo  *time.Time
	OnlyActive bool
	Keyword    string // item name, addresses or partner name
}

// NearbyFilter pending unassigned deliveries around a point
type NearbyFilter struct {
	Lat       float64
	Lng       float64
	RadiusKM  float64
	ExcludeID uint // caller, never sees own requests
	Limit     int
}

// MessageListFilter messages of one chat
type MessageListFilter struct {
	ChatID   uint
	AfterID  uint
	PageSize int
}
