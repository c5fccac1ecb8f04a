package models

import (
	"time"
)

// PointGrant one credited reward rule per delivery, unique per (delivery, kind)
type PointGrant struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	DeliveryID uint      `gorm:"uniqueIndex:idx_point_grant_delivery_kind;not null" json:"delivery_id"`
	Kind       string    `gorm:"uniqueIndex:idx_point_grant_delivery_kind;type:varchar(32);not null" json:"kind"`
	Points     int       `gorm:"not null" json:"points"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName point_grants
func (PointGrant) TableName() string {
	return "point_grants"
}

// RewardRedemption a catalog reward exchanged for points
type RewardRedemption struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	RewardID  string    `gorm:"type:varchar(64);not null" json:"reward_id"`
	Name      string    `gorm:"type:varchar(120)" json:"name"`
	Points    int       `gorm:"not null" json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName reward_redemptions
func (RewardRedemption) TableName() string {
	return "reward_redemptions"
}
