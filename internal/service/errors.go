package service

import "errors"

// Common
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrQueueUnavailable = errors.New("queue unavailable")
	ErrLocationInvalid  = errors.New("location invalid")
)

// Accounts and sessions
var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrProfileExists      = errors.New("profile already exists")
	ErrProfileNotFound    = errors.New("profile not found")
)

// Deliveries
var (
	ErrDeliveryNotFound     = errors.New("delivery not found")
	ErrDeliveryInvalid      = errors.New("delivery request invalid")
	ErrItemNameRequired     = errors.New("item name required")
	ErrPhoneInvalid         = errors.New("phone must have 10 digits")
	ErrAmountInvalid        = errors.New("amount must be positive")
	ErrTimeLimitInvalid     = errors.New("time limit must be positive")
	ErrDeliveryTaken        = errors.New("delivery already taken")
	ErrOwnDelivery          = errors.New("cannot accept own delivery")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrCancelNotAllowed     = errors.New("delivery can no longer be cancelled")
	ErrEmergencyRequired    = errors.New("emergency cancellation required")
	ErrItemPhotoMissing     = errors.New("item photo missing")
	ErrDeliveryPhotoMissing = errors.New("delivery photo missing")
	ErrRatingInvalid        = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated         = errors.New("delivery already rated")
	ErrPhotoTypeInvalid     = errors.New("photo type invalid")
)

// Chat negotiation
var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrMessageEmpty        = errors.New("message empty")
	ErrMessageTooLong      = errors.New("message too long")
	ErrAmountConfirmed     = errors.New("amount already confirmed")
	ErrNoPin               = errors.New("no amount pinned")
	ErrPinnerCannotConfirm = errors.New("pinner cannot confirm own amount")
)

// Rewards
var (
	ErrRewardNotFound     = errors.New("reward not found")
	ErrInsufficientPoints = errors.New("insufficient reward points")
)

// Uploads
var (
	ErrUploadTooLarge       = errors.New("file too large")
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	ErrUploadTooWide        = errors.New("image dimensions exceed limit")
)
