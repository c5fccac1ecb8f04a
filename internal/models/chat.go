package models

import (
	"time"
)

// Chat one per delivery, created on acceptance
type Chat struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	DeliveryID   uint       `gorm:"uniqueIndex;not null" json:"delivery_id"`
	SenderID     uint       `gorm:"index;not null" json:"sender_id"`
	PartnerID    uint       `gorm:"index;not null" json:"partner_id"`
	AgreedAmount *Money     `gorm:"type:decimal(20,2)" json:"agreed_amount"`
	PinnedBy     *uint      `json:"pinned_by"`
	PinnedAt     *time.Time `json:"pinned_at"`
	Confirmed    bool       `gorm:"not null;default:false" json:"confirmed"`
	ConfirmedBy  *uint      `json:"confirmed_by"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName chats
func (Chat) TableName() string {
	return "chats"
}

// IsMember sender or partner of the chat
func (c *Chat) IsMember(userID uint) bool {
	return c != nil && userID != 0 && (c.SenderID == userID || c.PartnerID == userID)
}

// Message append-only chat entry
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ChatID    uint      `gorm:"index;not null" json:"chat_id"`
	SenderID  uint      `gorm:"index;not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsSystem  bool      `gorm:"not null;default:false" json:"is_system"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName messages
func (Message) TableName() string {
	return "messages"
}
