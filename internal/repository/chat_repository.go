package repository

import (
	"errors"
	"time"

	"github.com/parcelpal/internal/models"

	"gorm.io/gorm"
)

// ChatRepository chats and their messages
type ChatRepository interface {
	GetByID(id uint) (*models.Chat, error)
	GetByDelivery(deliveryID uint) (*models.Chat, error)
	Create(chat *models.Chat) error
	UpdateFields(id uint, updates map[string]interface{}) error
	PinAmount(id, pinnerID uint, amount models.Money, at time.Time, overrideConfirmed bool) (bool, error)
	ConfirmPinned(id, confirmerID uint, at time.Time) (bool, error)
	AddMessage(message *models.Message) error
	ListMessages(filter MessageListFilter) ([]models.Message, error)
	WithTx(tx *gorm.DB) ChatRepository
}

// GormChatRepository gorm implementation
type GormChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates the repository
func NewChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// WithTx binds a transaction
func (r *GormChatRepository) WithTx(tx *gorm.DB) ChatRepository {
	if tx == nil {
		return r
	}
	return &GormChatRepository{db: tx}
}

// GetByID returns (nil, nil) when missing
func (r *GormChatRepository) GetByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// GetByDelivery returns (nil, nil) until the delivery is accepted
func (r *GormChatRepository) GetByDelivery(deliveryID uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.Where("delivery_id = ?", deliveryID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// Create inserts a chat; delivery_id is unique
func (r *GormChatRepository) Create(chat *models.Chat) error {
	return r.db.Create(chat).Error
}

// UpdateFields partial update
func (r *GormChatRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Chat{}).Where("id = ?", id).Updates(updates).Error
}

// PinAmount replaces the pinned amount and resets confirmation.
// A confirmed amount is only replaced when overrideConfirmed is set.
func (r *GormChatRepository) PinAmount(id, pinnerID uint, amount models.Money, at time.Time, overrideConfirmed bool) (bool, error) {
	query := r.db.Model(&models.Chat{}).Where("id = ?", id)
	if !overrideConfirmed {
		query = query.Where("confirmed = ?", false)
	}
	result := query.Updates(map[string]interface{}{
		"agreed_amount": amount,
		"pinned_by":     pinnerID,
		"pinned_at":     at,
		"confirmed":     false,
		"confirmed_by":  nil,
		"confirmed_at":  nil,
		"updated_at":    at,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ConfirmPinned confirms the current pin when the confirmer is not the pinner
func (r *GormChatRepository) ConfirmPinned(id, confirmerID uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Chat{}).
		Where("id = ? AND agreed_amount IS NOT NULL AND pinned_by IS NOT NULL AND pinned_by <> ? AND confirmed = ?", id, confirmerID, false).
		Updates(map[string]interface{}{
			"confirmed":    true,
			"confirmed_by": confirmerID,
			"confirmed_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AddMessage appends a message
func (r *GormChatRepository) AddMessage(message *models.Message) error {
	return r.db.Create(message).Error
}

// ListMessages oldest first
func (r *GormChatRepository) ListMessages(filter MessageListFilter) ([]models.Message, error) {
	query := r.db.Where("chat_id = ?", filter.ChatID)
	if filter.AfterID != 0 {
		query = query.Where("id > ?", filter.AfterID)
	}
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
	}
	var messages []models.Message
	if err := query.Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
