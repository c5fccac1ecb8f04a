package client

import (
	"time"

	"github.com/parcelpal/internal/geo"

	"github.com/shopspring/decimal"
)

// TokenPair access and refresh tokens
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Account sign-in identity
type Account struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// Profile user profile row
type Profile struct {
	ID                 uint       `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	Phone              string     `json:"phone"`
	RewardPoints       int        `json:"reward_points"`
	TotalDeliveries    int        `json:"total_deliveries"`
	TotalRequests      int        `json:"total_requests"`
	Rating             float64    `json:"rating"`
	CurrentLocationLat *float64   `json:"current_location_lat"`
	CurrentLocationLng *float64   `json:"current_location_lng"`
	LocationUpdatedAt  *time.Time `json:"location_updated_at,omitempty"`
	IsAvailable        bool       `json:"is_available"`
}

// Session result of register, login and refresh
type Session struct {
	Account *Account  `json:"account"`
	Profile *Profile  `json:"profile"`
	Tokens  TokenPair `json:"tokens"`
}

// UserSummary public name and rating
type UserSummary struct {
	ID       uint    `json:"id"`
	FullName string  `json:"full_name"`
	Rating   float64 `json:"rating"`
}

// Delivery delivery row
type Delivery struct {
	ID                 uint            `json:"id"`
	SenderID           uint            `json:"sender_id"`
	DeliveryPartnerID  *uint           `json:"delivery_partner_id"`
	PartnerName        string          `json:"partner_name,omitempty"`
	PartnerPhone       string          `json:"partner_phone,omitempty"`
	ItemName           string          `json:"item_name"`
	Phone              string          `json:"phone"`
	DeliveryAmount     decimal.Decimal `json:"delivery_amount"`
	TimeLimit          int             `json:"time_limit"`
	SourceLat          float64         `json:"source_lat"`
	SourceLng          float64         `json:"source_lng"`
	SourceAddress      string          `json:"source_address"`
	DestinationLat     float64         `json:"destination_lat"`
	DestinationLng     float64         `json:"destination_lng"`
	DestinationAddress string          `json:"destination_address"`
	Distance           float64         `json:"distance"`
	Status             string          `json:"status"`
	ItemPhotoURL       string          `json:"item_photo_url"`
	DeliveryPhotoURL   string          `json:"delivery_photo_url"`
	ItemVerified       bool            `json:"item_verified"`
	ItemVerifiedAt     *time.Time      `json:"item_verified_at"`
	AcceptedAt         *time.Time      `json:"accepted_at"`
	PickedUpAt         *time.Time      `json:"picked_up_at"`
	DeliveredAt        *time.Time      `json:"delivered_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	CancelReason       string          `json:"cancel_reason,omitempty"`
	CancelledBy        string          `json:"cancelled_by,omitempty"`
	Rating             *int            `json:"rating"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Source pickup location
func (d *Delivery) Source() geo.Location {
	return geo.Location{Lat: d.SourceLat, Lng: d.SourceLng, Address: d.SourceAddress}
}

// Destination drop-off location
func (d *Delivery) Destination() geo.Location {
	return geo.Location{Lat: d.DestinationLat, Lng: d.DestinationLng, Address: d.DestinationAddress}
}

// IsPartner userID is the assigned partner
func (d *Delivery) IsPartner(userID uint) bool {
	return d != nil && d.DeliveryPartnerID != nil && *d.DeliveryPartnerID == userID
}

// NearbyDelivery pending request with its distance to the caller
type NearbyDelivery struct {
	Delivery
	DistanceKM float64 `json:"distance_km"`
}

// DeliveryForm sender's new request
type DeliveryForm struct {
	ItemName    string          `json:"item_name"`
	Phone       string          `json:"phone"`
	Amount      decimal.Decimal `json:"delivery_amount"`
	TimeLimit   int             `json:"time_limit"`
	Source      *geo.Location   `json:"source"`
	Destination *geo.Location   `json:"destination"`
}

// Chat negotiation state of one delivery
type Chat struct {
	ID           uint             `json:"id"`
	DeliveryID   uint             `json:"delivery_id"`
	SenderID     uint             `json:"sender_id"`
	PartnerID    uint             `json:"partner_id"`
	AgreedAmount *decimal.Decimal `json:"agreed_amount"`
	PinnedBy     *uint            `json:"pinned_by"`
	PinnedAt     *time.Time       `json:"pinned_at"`
	Confirmed    bool             `json:"confirmed"`
	ConfirmedBy  *uint            `json:"confirmed_by"`
	ConfirmedAt  *time.Time       `json:"confirmed_at"`
}

// Message chat message
type Message struct {
	ID        uint      `json:"id"`
	ChatID    uint      `json:"chat_id"`
	SenderID  uint      `json:"sender_id"`
	Content   string    `json:"content"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

// AcceptResult accepted delivery and its new chat
type AcceptResult struct {
	Delivery *Delivery `json:"delivery"`
	Chat     *Chat     `json:"chat"`
}

// PhotoUpload stored photo and the updated delivery
type PhotoUpload struct {
	ImageURL string    `json:"imageUrl"`
	Delivery *Delivery `json:"delivery"`
}

// Stats profile page counters
type Stats struct {
	CompletedAsPartner int64      `json:"completed_as_partner"`
	CompletedAsSender  int64      `json:"completed_as_sender"`
	AverageRating      float64    `json:"average_rating"`
	RatedCount         int64      `json:"rated_count"`
	RewardPoints       int        `json:"reward_points"`
	Recent             []Delivery `json:"recent"`
}

// Reward catalog entry
type Reward struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// EarnRule how points are earned
type EarnRule struct {
	Kind   string `json:"kind"`
	Points int    `json:"points"`
}

// Redemption past redemption
type Redemption struct {
	ID        uint      `json:"id"`
	RewardID  string    `json:"reward_id"`
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Rewards catalog, earn rules and the caller's redemptions
type Rewards struct {
	Catalog     []Reward     `json:"catalog"`
	EarnRules   []EarnRule   `json:"earn_rules"`
	Redemptions []Redemption `json:"redemptions"`
}

// MapConfig map defaults served by the api
type MapConfig struct {
	DefaultCenter  geo.Point `json:"default_center"`
	TileURL        string    `json:"tile_url"`
	NearbyRadiusKM float64   `json:"nearby_radius_km"`
	PollInterval   int       `json:"poll_interval"`
}

// Pagination list metadata
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}
