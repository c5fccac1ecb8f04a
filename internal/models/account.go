package models

import (
	"time"

	"gorm.io/gorm"
)

// Account login identity. The profile lives in users with the same ID.
type Account struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	FullName     string         `gorm:"default:''" json:"full_name"` // signup metadata
	Phone        string         `gorm:"type:varchar(32)" json:"phone"`
	TokenVersion uint64         `gorm:"not null;default:0" json:"-"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName accounts
func (Account) TableName() string {
	return "accounts"
}
