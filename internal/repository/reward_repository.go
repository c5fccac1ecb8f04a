package repository

import (
	"github.com/parcelpal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardRepository point grants and redemptions
type RewardRepository interface {
	// Grant records a grant once per (delivery, kind); false when already granted.
	Grant(grant *models.PointGrant) (bool, error)
	CreateRedemption(redemption *models.RewardRedemption) error
	ListRedemptions(userID uint, limit int) ([]models.RewardRedemption, error)
	WithTx(tx *gorm.DB) RewardRepository
}

// GormRewardRepository gorm implementation
type GormRewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository creates the repository
func NewRewardRepository(db *gorm.DB) *GormRewardRepository {
	return &GormRewardRepository{db: db}
}

// WithTx binds a transaction
func (r *GormRewardRepository) WithTx(tx *gorm.DB) RewardRepository {
	if tx == nil {
		return r
	}
	return &GormRewardRepository{db: tx}
}

// Grant inserts ignoring duplicates
func (r *GormRewardRepository) Grant(grant *models.PointGrant) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(grant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreateRedemption records a redemption
func (r *GormRewardRepository) CreateRedemption(redemption *models.RewardRedemption) error {
	return r.db.Create(redemption).Error
}

// ListRedemptions newest first
func (r *GormRewardRepository) ListRedemptions(userID uint, limit int) ([]models.RewardRedemption, error) {
	query := r.db.Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.RewardRedemption
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
