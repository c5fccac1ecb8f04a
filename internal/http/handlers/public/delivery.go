package public

import (
	"context"
	"strconv"
	"strings"

	"github.com/parcelpal/internal/geo"
	handlershared "github.com/parcelpal/internal/http/handlers/shared"
	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateDeliveryRequest sender request form
type CreateDeliveryRequest struct {
	ItemName       string        `json:"item_name"`
	Phone          string        `json:"phone"`
	DeliveryAmount models.Money  `json:"delivery_amount"`
	TimeLimit      int           `json:"time_limit"`
	Source         *geo.Location `json:"source"`
	Destination    *geo.Location `json:"destination"`
}

// AcceptDeliveryRequest partner contact details
type AcceptDeliveryRequest struct {
	PartnerName  string `json:"partnerName"`
	PartnerPhone string `json:"partnerPhone"`
}

// CancelDeliveryRequest cancellation; cancelled_by is informational, the
// server derives it from the caller's role
type CancelDeliveryRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
	Emergency   bool   `json:"emergency"`
}

// VerifyItemRequest sender decision on the item photo
type VerifyItemRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// RateDeliveryRequest rating after completion
type RateDeliveryRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// CreateDelivery posts a new request
func (h *Handler) CreateDelivery(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	delivery, err := h.DeliveryService.Create(c.Request.Context(), uid, service.CreateDeliveryInput{
		ItemName:    req.ItemName,
		Phone:       req.Phone,
		Amount:      req.DeliveryAmount,
		TimeLimit:   req.TimeLimit,
		Source:      req.Source,
		Destination: req.Destination,
	})
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, delivery)
}

// ListDeliveries caller's deliveries by role
func (h *Handler) ListDeliveries(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	deliveries, total, err := h.DeliveryService.List(uid, service.ListDeliveriesInput{
		Role:       c.Query("role"),
		ActiveOnly: queryBool(c, "active"),
		Keyword:    c.Query("q"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, deliveries, response.BuildPagination(page, pageSize, total))
}

// NearbyDeliveries pending requests around ?lat&lng (falls back to the
// caller's stored location)
func (h *Handler) NearbyDeliveries(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	lat, hasLat := queryFloat(c, "lat")
	lng, hasLng := queryFloat(c, "lng")
	if !hasLat || !hasLng {
		profile, err := h.ProfileService.Get(uid)
		if err != nil || !profile.HasLocation() {
			respondError(c, response.CodeBadRequest, "error.location_invalid", nil)
			return
		}
		lat, lng = *profile.CurrentLocationLat, *profile.CurrentLocationLng
	}
	radius, _ := queryFloat(c, "radius")
	nearby, err := h.DeliveryService.Nearby(uid, lat, lng, radius)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, nearby)
}

// GetDelivery one delivery visible to the caller
func (h *Handler) GetDelivery(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	delivery, err := h.DeliveryService.Get(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, delivery)
}

// GetDeliveryMap markers, route and bounds
func (h *Handler) GetDeliveryMap(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	view, err := h.DeliveryService.Map(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, view)
}

// AcceptDelivery assigns the caller as partner
func (h *Handler) AcceptDelivery(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	var req AcceptDeliveryRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.DeliveryService.Accept(c.Request.Context(), uid, id, service.AcceptInput{
		PartnerName:  req.PartnerName,
		PartnerPhone: req.PartnerPhone,
	})
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, result)
}

// CancelDelivery cancels as sender or partner
func (h *Handler) CancelDelivery(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	var req CancelDeliveryRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	delivery, err := h.DeliveryService.Cancel(c.Request.Context(), uid, id, service.CancelInput{
		Reason:    req.Reason,
		Emergency: req.Emergency,
	})
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	if claimed := strings.TrimSpace(req.CancelledBy); claimed != "" && claimed != delivery.CancelledBy {
		requestLog(c).Debugw("delivery_cancel_role_mismatch", "delivery_id", id, "claimed", claimed, "actual", delivery.CancelledBy)
	}
	response.Success(c, delivery)
}

// VerifyItem sender approves or rejects the item photo
func (h *Handler) VerifyItem(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	var req VerifyItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	delivery, err := h.DeliveryService.VerifyItem(c.Request.Context(), uid, id, *req.Approved)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, delivery)
}

// MarkInTransit partner left the pickup point
func (h *Handler) MarkInTransit(c *gin.Context) {
	h.transition(c, h.DeliveryService.MarkInTransit)
}

// DeliverDelivery partner handed the item over
func (h *Handler) DeliverDelivery(c *gin.Context) {
	h.transition(c, h.DeliveryService.Deliver)
}

// CompleteDelivery sender confirms receipt
func (h *Handler) CompleteDelivery(c *gin.Context) {
	h.transition(c, h.DeliveryService.Complete)
}

// DisputeDelivery sender rejects receipt
func (h *Handler) DisputeDelivery(c *gin.Context) {
	h.transition(c, h.DeliveryService.Dispute)
}

// RateDelivery sender rates the partner once
func (h *Handler) RateDelivery(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	var req RateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	delivery, err := h.DeliveryService.Rate(c.Request.Context(), uid, id, req.Rating, req.Feedback)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, delivery)
}

type deliveryTransition func(ctx context.Context, userID, deliveryID uint) (*models.Delivery, error)

func (h *Handler) transition(c *gin.Context, fn deliveryTransition) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	delivery, err := fn(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, deliveryHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, delivery)
}

func (h *Handler) deliveryTarget(c *gin.Context) (uint, uint, bool) {
	uid, ok := getUserID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	return uid, id, true
}

// bindOptionalJSON binds a body when one was sent
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dest)
}

func formUint(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.PostForm(key)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
