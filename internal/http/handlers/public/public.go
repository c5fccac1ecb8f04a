package public

import (
	"context"
	"strings"
	"time"

	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/models"

	"github.com/gin-gonic/gin"
)

const geocodeRequestBudget = 5 * time.Second

// Health liveness plus database reachability
func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if models.DB == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "unavailable"
	}
	response.Success(c, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"time":     time.Now().UTC(),
	})
}

// GetMapConfig default map center and tile layer
func (h *Handler) GetMapConfig(c *gin.Context) {
	cfg := h.Config.Map
	response.Success(c, gin.H{
		"default_center": gin.H{
			"lat": cfg.DefaultLat,
			"lng": cfg.DefaultLng,
		},
		"tile_url":         cfg.TileURL,
		"nearby_radius_km": h.Config.Delivery.NearbyRadiusKM,
		"poll_interval":    h.Config.Delivery.PollIntervalSeconds,
	})
}

// ReverseGeocode address for ?lat&lng
func (h *Handler) ReverseGeocode(c *gin.Context) {
	lat, okLat := queryFloat(c, "lat")
	lng, okLng := queryFloat(c, "lng")
	if !okLat || !okLng {
		respondError(c, response.CodeBadRequest, "error.location_invalid", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), geocodeRequestBudget)
	defer cancel()
	address, err := h.Geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		respondWithMappedError(c, err, geocodingErrorRules, response.CodeUpstream, "error.geocoding_unavailable")
		return
	}
	response.Success(c, address)
}

// SearchGeocode places matching ?q
func (h *Handler) SearchGeocode(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondError(c, response.CodeBadRequest, "error.geocoding_query_required", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), geocodeRequestBudget)
	defer cancel()
	places, err := h.Geocoder.Search(ctx, query)
	if err != nil {
		respondWithMappedError(c, err, geocodingErrorRules, response.CodeUpstream, "error.geocoding_unavailable")
		return
	}
	response.Success(c, places)
}
