package repository

import (
	"errors"
	"time"

	"github.com/parcelpal/internal/models"

	"gorm.io/gorm"
)

// UserRepository profile rows
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	ListByIDs(ids []uint) ([]models.User, error)
	ListAvailable(excludeID uint, limit int) ([]models.User, error)
	Create(user *models.User) error
	UpdateFields(id uint, updates map[string]interface{}) error
	UpdateLocation(id uint, lat, lng float64, at time.Time) error
	IncrementCounters(id uint, deliveries, requests int) error
	SetRating(id uint, rating float64) error
	AddRewardPoints(id uint, points int) error
	DeductRewardPoints(id uint, points int) (bool, error)
	WithTx(tx *gorm.DB) UserRepository
}

// GormUserRepository gorm implementation
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates the repository
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx binds a transaction
func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// GetByID returns (nil, nil) when missing
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListByIDs batch lookup
func (r *GormUserRepository) ListByIDs(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListAvailable users taking deliveries with a known location
func (r *GormUserRepository) ListAvailable(excludeID uint, limit int) ([]models.User, error) {
	query := r.db.Where("is_available = ? AND current_location_lat IS NOT NULL AND current_location_lng IS NOT NULL", true)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var users []models.User
	if err := query.Order("location_updated_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a profile; callers check models.IsUniqueViolation
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// UpdateFields partial update
func (r *GormUserRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateLocation stores the last-known location
func (r *GormUserRepository) UpdateLocation(id uint, lat, lng float64, at time.Time) error {
	return r.UpdateFields(id, map[string]interface{}{
		"current_location_lat": lat,
		"current_location_lng": lng,
		"location_updated_at":  at,
	})
}

// IncrementCounters adds to total_deliveries / total_requests
func (r *GormUserRepository) IncrementCounters(id uint, deliveries, requests int) error {
	updates := map[string]interface{}{}
	if deliveries != 0 {
		updates["total_deliveries"] = gorm.Expr("total_deliveries + ?", deliveries)
	}
	if requests != 0 {
		updates["total_requests"] = gorm.Expr("total_requests + ?", requests)
	}
	return r.UpdateFields(id, updates)
}

// SetRating stores the average rating
func (r *GormUserRepository) SetRating(id uint, rating float64) error {
	return r.UpdateFields(id, map[string]interface{}{"rating": rating})
}

// AddRewardPoints credits points
func (r *GormUserRepository) AddRewardPoints(id uint, points int) error {
	if points == 0 {
		return nil
	}
	return r.UpdateFields(id, map[string]interface{}{
		"reward_points": gorm.Expr("reward_points + ?", points),
	})
}

// DeductRewardPoints debits points only when the balance covers them
func (r *GormUserRepository) DeductRewardPoints(id uint, points int) (bool, error) {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND reward_points >= ?", id, points).
		Updates(map[string]interface{}{
			"reward_points": gorm.Expr("reward_points - ?", points),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
