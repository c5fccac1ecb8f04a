package public

import (
	"strconv"
	"strings"

	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/service"

	"github.com/gin-gonic/gin"
)

const maxLookupIDs = 100

// ProvisionProfileRequest profile creation for accounts without one
type ProvisionProfileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// UpdateProfileRequest partial update; omitted fields stay
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// UpdateLocationRequest last-known position
type UpdateLocationRequest struct {
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Accuracy float64  `json:"accuracy"`
}

// AvailabilityRequest partner availability toggle
type AvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// GetMe returns the caller's profile; 404 until provisioned
func (h *Handler) GetMe(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.ProfileService.Get(uid)
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, user)
}

// ProvisionProfile creates the caller's profile row
func (h *Handler) ProvisionProfile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ProvisionProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.ProfileService.Provision(uid, req.FullName, req.Phone)
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, user)
}

// UpdateMe edits name and phone
func (h *Handler) UpdateMe(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.ProfileService.Update(c.Request.Context(), uid, service.UpdateProfileInput{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, user)
}

// UpdateLocation stores the caller's position
func (h *Handler) UpdateLocation(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.location_invalid", err)
		return
	}
	user, err := h.ProfileService.UpdateLocation(c.Request.Context(), uid, *req.Lat, *req.Lng, req.Accuracy)
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, user)
}

// SetAvailability toggles is_available
func (h *Handler) SetAvailability(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.ProfileService.SetAvailability(uid, *req.IsAvailable)
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, user)
}

// GetUser public summary of one user
func (h *Handler) GetUser(c *gin.Context) {
	if _, ok := getUserID(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	summaries, err := h.ProfileService.Lookup([]uint{id})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if len(summaries) == 0 {
		respondError(c, response.CodeNotFound, "error.profile_not_found", nil)
		return
	}
	response.Success(c, summaries[0])
}

// LookupUsers batch summaries for ?ids=1,2,3
func (h *Handler) LookupUsers(c *gin.Context) {
	if _, ok := getUserID(c); !ok {
		return
	}
	ids, ok := parseIDList(c.Query("ids"))
	if !ok {
		respondError(c, response.CodeBadRequest, "error.id_invalid", nil)
		return
	}
	summaries, err := h.ProfileService.Lookup(ids)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, summaries)
}

// GetMyStats profile page counters
func (h *Handler) GetMyStats(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	stats, err := h.ProfileService.Stats(uid)
	if err != nil {
		respondWithMappedError(c, err, profileHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, stats)
}

func parseIDList(raw string) ([]uint, bool) {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, false
		}
		ids = append(ids, uint(id))
	}
	if len(ids) == 0 || len(ids) > maxLookupIDs {
		return nil, false
	}
	return ids, true
}
