package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/parcelpal/internal/models"

	"gorm.io/gorm"
)

// AccountRepository login identities
type AccountRepository interface {
	GetByEmail(email string) (*models.Account, error)
	GetByID(id uint) (*models.Account, error)
	Create(account *models.Account) error
	TouchLogin(id uint, at time.Time) error
	BumpTokenVersion(id uint) error
	WithTx(tx *gorm.DB) AccountRepository
}

// GormAccountRepository gorm implementation
type GormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates the repository
func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// WithTx binds a transaction
func (r *GormAccountRepository) WithTx(tx *gorm.DB) AccountRepository {
	if tx == nil {
		return r
	}
	return &GormAccountRepository{db: tx}
}

// GetByEmail case-insensitive lookup
func (r *GormAccountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByID lookup
func (r *GormAccountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create inserts an account
func (r *GormAccountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

// TouchLogin records the last login
func (r *GormAccountRepository) TouchLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// BumpTokenVersion invalidates every issued token
func (r *GormAccountRepository) BumpTokenVersion(id uint) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).
		Update("token_version", gorm.Expr("token_version + 1")).Error
}
