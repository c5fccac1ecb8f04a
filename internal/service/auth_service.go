package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/parcelpal/internal/cache"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const defaultPasswordMinLength = 6

// AuthService accounts and token issuance
type AuthService struct {
	cfg         *config.Config
	db          *gorm.DB
	accountRepo repository.AccountRepository
	userRepo    repository.UserRepository
}

// NewAuthService creates the auth service
func NewAuthService(cfg *config.Config, db *gorm.DB, accountRepo repository.AccountRepository, userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		cfg:         cfg,
		db:          db,
		accountRepo: accountRepo,
		userRepo:    userRepo,
	}
}

// JWTClaims account token claims
type JWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	Type         string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair access and refresh tokens
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RegisterInput signup form
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// SessionResult account plus issued tokens; Profile is nil when not provisioned
type SessionResult struct {
	Account *models.Account
	Profile *models.User
	Tokens  TokenPair
}

// Register creates an account and, when configured, its profile in the same transaction
func (s *AuthService) Register(input RegisterInput) (*SessionResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < s.passwordMinLength() {
		return nil, ErrPasswordTooShort
	}
	existing, err := s.accountRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
	}
	var profile *models.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.WithTx(tx).Create(account); err != nil {
			if models.IsUniqueViolation(err) {
				return ErrEmailExists
			}
			return err
		}
		if !s.cfg.Auth.ProvisionProfileOnSignup {
			return nil
		}
		profile = newProfileFromAccount(account, "", "")
		return s.userRepo.WithTx(tx).Create(profile)
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	logger.Infow("account_registered", "user_id", account.ID, "profile_provisioned", profile != nil)
	return &SessionResult{Account: account, Profile: profile, Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(email, password string) (*SessionResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	account, err := s.accountRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.accountRepo.TouchLogin(account.ID, now); err != nil {
		logger.Warnw("account_touch_login_failed", "user_id", account.ID, "error", err)
	}
	account.LastLoginAt = &now
	_ = cache.SetAccountAuthState(context.Background(), cache.BuildAccountAuthState(account))

	profile, err := s.userRepo.GetByID(account.ID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Account: account, Profile: profile, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	claims, err := s.ParseToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidToken
	}
	if account.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}
	tokens, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	_ = cache.SetAccountAuthState(ctx, cache.BuildAccountAuthState(account))
	return &SessionResult{Account: account, Tokens: tokens}, nil
}

// Logout revokes every token issued so far
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if err := s.accountRepo.BumpTokenVersion(userID); err != nil {
		return err
	}
	if err := cache.DelAccountAuthState(ctx, userID); err != nil {
		logger.Warnw("auth_state_cache_delete_failed", "user_id", userID, "error", err)
	}
	logger.Infow("account_logged_out", "user_id", userID)
	return nil
}

// Authenticate validates an access token and its version; redis first, database on miss
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*JWTClaims, error) {
	claims, err := s.ParseToken(tokenString, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if cached, hit, cacheErr := cache.GetAccountAuthState(ctx, claims.UserID); cacheErr == nil && hit && cached != nil {
		if cached.TokenVersion != claims.TokenVersion {
			return nil, ErrTokenRevoked
		}
		return claims, nil
	}

	account, err := s.accountRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidToken
	}
	if account.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}
	_ = cache.SetAccountAuthState(ctx, cache.BuildAccountAuthState(account))
	return claims, nil
}

// GenerateToken signs a token of the given type
func (s *AuthService) GenerateToken(account *models.Account, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := JWTClaims{
		UserID:       account.ID,
		Email:        account.Email,
		TokenVersion: account.TokenVersion,
		Type:         tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, expiry and type
func (s *AuthService) ParseToken(tokenString, tokenType string) (*JWTClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 || claims.Type != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issue(account *models.Account) (TokenPair, error) {
	access, accessExp, err := s.GenerateToken(account, TokenTypeAccess, s.cfg.JWT.AccessTTL())
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.GenerateToken(account, TokenTypeRefresh, s.cfg.JWT.RefreshTTL())
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) passwordMinLength() int {
	if s.cfg.Auth.PasswordMinLength > 0 {
		return s.cfg.Auth.PasswordMinLength
	}
	return defaultPasswordMinLength
}

// newProfileFromAccount profile defaults; explicit values win over signup metadata
func newProfileFromAccount(account *models.Account, fullName, phone string) *models.User {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = strings.TrimSpace(account.FullName)
	}
	if name == "" {
		name = constants.DefaultFullName
	}
	if strings.TrimSpace(phone) == "" {
		phone = account.Phone
	}
	return &models.User{
		ID:       account.ID,
		Email:    account.Email,
		FullName: name,
		Phone:    strings.TrimSpace(phone),
	}
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// IsAuthError token failures that map to 401
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrInvalidCredentials)
}
