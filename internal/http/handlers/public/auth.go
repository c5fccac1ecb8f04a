package public

import (
	"strings"

	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest signup form
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// LoginRequest sign-in form
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SessionResponse account, optional profile and token pair
type SessionResponse struct {
	Account *models.Account   `json:"account"`
	Profile *models.User      `json:"profile"`
	Tokens  service.TokenPair `json:"tokens"`
}

func toSessionResponse(result *service.SessionResult) SessionResponse {
	return SessionResponse{
		Account: result.Account,
		Profile: result.Profile,
		Tokens:  result.Tokens,
	}
}

// Register creates an account and signs it in
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.AuthService.Register(service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		respondWithMappedError(c, err, authErrorRules, response.CodeInternal, "error.internal")
		return
	}
	requestLog(c).Infow("user_registered", "user_id", result.Account.ID, "profile", result.Profile != nil)
	response.Success(c, toSessionResponse(result))
}

// Login signs an account in
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.AuthService.Login(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondWithMappedError(c, err, authErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, toSessionResponse(result))
}

// Refresh exchanges a refresh token for a new pair
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.AuthService.Refresh(c.Request.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if service.IsAuthError(err) {
			respondWithMappedError(c, err, authErrorRules, response.CodeUnauthorized, "error.token_invalid")
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, toSessionResponse(result))
}

// Logout revokes every token issued so far
func (h *Handler) Logout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.AuthService.Logout(c.Request.Context(), uid); err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, nil)
}
