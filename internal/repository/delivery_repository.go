package repository

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/models"

	"gorm.io/gorm"
)

const kmPerDegreeLat = 111.19

// DeliveryRepository delivery rows
type DeliveryRepository interface {
	GetByID(id uint) (*models.Delivery, error)
	Create(delivery *models.Delivery) error
	UpdateFields(id uint, updates map[string]interface{}) error
	Assign(id, partnerID uint, partnerName, partnerPhone string, at time.Time) (bool, error)
	TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error)
	List(filter DeliveryListFilter) ([]models.Delivery, int64, error)
	ListPendingUnassignedNear(filter NearbyFilter) ([]models.Delivery, error)
	ListStalePending(before time.Time, limit int) ([]models.Delivery, error)
	PartnerRatingStats(partnerID uint) (float64, int64, error)
	RateOnce(id uint, rating int, at time.Time) (bool, error)
	WithTx(tx *gorm.DB) DeliveryRepository
}

// GormDeliveryRepository gorm implementation
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates the repository
func NewDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// WithTx binds a transaction
func (r *GormDeliveryRepository) WithTx(tx *gorm.DB) DeliveryRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryRepository{db: tx}
}

// GetByID returns (nil, nil) when missing
func (r *GormDeliveryRepository) GetByID(id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// Create inserts a delivery
func (r *GormDeliveryRepository) Create(delivery *models.Delivery) error {
	return r.db.Create(delivery).Error
}

// UpdateFields partial update
func (r *GormDeliveryRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Delivery{}).Where("id = ?", id).Updates(updates).Error
}

// Assign sets the partner only while the row is pending and unassigned.
// false means another partner won or the row left pending.
func (r *GormDeliveryRepository) Assign(id, partnerID uint, partnerName, partnerPhone string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Delivery{}).
		Where("id = ? AND status = ? AND delivery_partner_id IS NULL", id, constants.DeliveryStatusPending).
		Updates(map[string]interface{}{
			"delivery_partner_id": partnerID,
			"partner_name":        partnerName,
			"partner_phone":       partnerPhone,
			"status":              constants.DeliveryStatusAccepted,
			"accepted_at":         at,
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionStatus moves id to status `to` when its current status is in from
func (r *GormDeliveryRepository) TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Delivery{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List newest first
func (r *GormDeliveryRepository) List(filter DeliveryListFilter) ([]models.Delivery, int64, error) {
	query := r.db.Model(&models.Delivery{})
	if filter.SenderID != 0 {
		query = query.Where("sender_id = ?", filter.SenderID)
	}
	if filter.PartnerID != 0 {
		query = query.Where("delivery_partner_id = ?", filter.PartnerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, n := buildKeywordCondition(r.db, deliverySearchColumns)
		query = query.Where(condition, repeatLikeArgs(containsPattern(keyword), n)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var deliveries []models.Delivery
	if err := query.Order("created_at DESC").Order("id DESC").Find(&deliveries).Error; err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

// ListPendingUnassignedNear coarse bounding-box candidates, nearest first; callers apply the exact distance
func (r *GormDeliveryRepository) ListPendingUnassignedNear(filter NearbyFilter) ([]models.Delivery, error) {
	query := r.db.Model(&models.Delivery{}).
		Where("status = ? AND delivery_partner_id IS NULL", constants.DeliveryStatusPending)
	if filter.ExcludeID != 0 {
		query = query.Where("sender_id <> ?", filter.ExcludeID)
	}
	cos := lngScale(filter.Lat)
	if filter.RadiusKM > 0 {
		dLat := filter.RadiusKM / kmPerDegreeLat
		dLng := filter.RadiusKM / (kmPerDegreeLat * cos)
		query = query.Where("source_lat BETWEEN ? AND ?", filter.Lat-dLat, filter.Lat+dLat)
		if dLng < 180 {
			query = applyLngRange(query, filter.Lng-dLng, filter.Lng+dLng)
		}
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var deliveries []models.Delivery
	err := query.Order(proximityOrder(filter.Lat, filter.Lng, cos)).
		Order("created_at DESC").Order("id DESC").
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// lngScale shrinks longitude degrees by latitude, clamped near the poles
func lngScale(lat float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		return 0.01
	}
	return cos
}

// applyLngRange filters [lo, hi], splitting it when it crosses the antimeridian
func applyLngRange(query *gorm.DB, lo, hi float64) *gorm.DB {
	switch {
	case lo < -180:
		return query.Where("(source_lng BETWEEN ? AND 180 OR source_lng BETWEEN -180 AND ?)", lo+360, hi)
	case hi > 180:
		return query.Where("(source_lng BETWEEN ? AND 180 OR source_lng BETWEEN -180 AND ?)", lo, hi-360)
	default:
		return query.Where("source_lng BETWEEN ? AND ?", lo, hi)
	}
}

// proximityOrder squared degree distance with longitude wrapped; portable across sqlite and postgres.
// Inputs are parsed floats, never request text.
func proximityOrder(lat, lng, cos float64) string {
	la := strconv.FormatFloat(lat, 'f', -1, 64)
	ln := strconv.FormatFloat(lng, 'f', -1, 64)
	sc := strconv.FormatFloat(cos, 'f', -1, 64)
	dLng := fmt.Sprintf("(CASE WHEN ABS(source_lng - (%[1]s)) > 180 THEN 360 - ABS(source_lng - (%[1]s)) ELSE ABS(source_lng - (%[1]s)) END * %[2]s)", ln, sc)
	return fmt.Sprintf("((source_lat - (%[1]s)) * (source_lat - (%[1]s)) + %[2]s * %[2]s) ASC", la, dLng)
}

// ListStalePending pending rows created before the cutoff
func (r *GormDeliveryRepository) ListStalePending(before time.Time, limit int) ([]models.Delivery, error) {
	query := r.db.Where("status = ? AND delivery_partner_id IS NULL AND created_at < ?", constants.DeliveryStatusPending, before).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var deliveries []models.Delivery
	if err := query.Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

// RateOnce stores the rating of a completed, not yet rated delivery
func (r *GormDeliveryRepository) RateOnce(id uint, rating int, at time.Time) (bool, error) {
	result := r.db.Model(&models.Delivery{}).
		Where("id = ? AND status = ? AND rating IS NULL", id, constants.DeliveryStatusCompleted).
		Updates(map[string]interface{}{
			"rating":     rating,
			"rated_at":   at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// PartnerRatingStats average rating and number of rated deliveries
func (r *GormDeliveryRepository) PartnerRatingStats(partnerID uint) (float64, int64, error) {
	var row struct {
		Avg   *float64
		Count int64
	}
	err := r.db.Model(&models.Delivery{}).
		Select("AVG(rating) AS avg, COUNT(rating) AS count").
		Where("delivery_partner_id = ? AND rating IS NOT NULL", partnerID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Avg == nil {
		return 0, row.Count, nil
	}
	return *row.Avg, row.Count, nil
}
