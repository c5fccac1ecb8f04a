package client

import (
	"errors"
	"fmt"
)

// Envelope codes the server answers with
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeRateLimited  = 429
	CodeInternal     = 500
	CodeUpstream     = 502
)

var (
	// ErrNetwork transport failure or timeout; the request may be retried
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized session missing or still rejected after one refresh
	ErrUnauthorized = errors.New("unauthorized")
	// ErrResponseInvalid body is not a response envelope
	ErrResponseInvalid = errors.New("response invalid")
)

// APIError non-zero envelope returned by the server
type APIError struct {
	Code    int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Path, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 envelope
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == CodeUnauthorized
}

// ValidationError form field rejected before submission
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// CodeOf envelope code carried by err, 0 when err is not an APIError
func CodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound entity not created yet (chat before accept, profile before provisioning)
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsConflict lost a race (delivery taken, duplicate profile, already rated)
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}

// IsValidation rejected locally or by the server as bad input
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) || CodeOf(err) == CodeBadRequest
}
