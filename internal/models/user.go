package models

import (
	"time"
)

// User profile row. ID equals the owning Account ID.
type User struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Email              string     `gorm:"index" json:"email"`
	FullName           string     `gorm:"not null;default:'User'" json:"full_name"`
	Phone              string     `gorm:"type:varchar(32)" json:"phone"`
	RewardPoints       int        `gorm:"not null;default:0" json:"reward_points"`
	TotalDeliveries    int        `gorm:"not null;default:0" json:"total_deliveries"` // completed as partner
	TotalRequests      int        `gorm:"not null;default:0" json:"total_requests"`   // completed as sender
	Rating             float64    `gorm:"not null;default:0" json:"rating"`
	CurrentLocationLat *float64   `json:"current_location_lat"`
	CurrentLocationLng *float64   `json:"current_location_lng"`
	LocationUpdatedAt  *time.Time `json:"location_updated_at,omitempty"`
	IsAvailable        bool       `gorm:"not null;default:false" json:"is_available"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName users
func (User) TableName() string {
	return "users"
}

// HasLocation reports a last-known location
func (u *User) HasLocation() bool {
	return u != nil && u.CurrentLocationLat != nil && u.CurrentLocationLng != nil
}
