package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/parcelpal/internal/geo"
)

// Photo types accepted by UploadImage
const (
	PhotoItem     = "item"
	PhotoDelivery = "delivery"
)

// ListOptions deliveries list filter
type ListOptions struct {
	Role       string // sender (default) or partner
	ActiveOnly bool
	Keyword    string
	Page       int
	PageSize   int
}

// CancelOptions cancellation request
type CancelOptions struct {
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
	Emergency   bool   `json:"emergency"`
}

// CreateDelivery validates form locally, then posts it
func (a *API) CreateDelivery(ctx context.Context, form DeliveryForm) (*Delivery, error) {
	if err := ValidateDeliveryForm(form); err != nil {
		return nil, err
	}
	var d Delivery
	if err := a.post(ctx, "/deliveries", form, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDeliveries caller's deliveries, newest first
func (a *API) ListDeliveries(ctx context.Context, opts ListOptions) ([]Delivery, *Pagination, error) {
	query := map[string]string{"role": opts.Role}
	if opts.ActiveOnly {
		query["active"] = "true"
	}
	if opts.Keyword != "" {
		query["q"] = opts.Keyword
	}
	if opts.Page > 0 {
		query["page"] = strconv.Itoa(opts.Page)
	}
	if opts.PageSize > 0 {
		query["page_size"] = strconv.Itoa(opts.PageSize)
	}
	var list []Delivery
	page, err := a.call(ctx, request{method: http.MethodGet, path: "/deliveries", query: query}, &list)
	if err != nil {
		return nil, nil, err
	}
	return list, page, nil
}

// Nearby pending requests around p; radiusKM <= 0 uses the server default
func (a *API) Nearby(ctx context.Context, p geo.Point, radiusKM float64) ([]NearbyDelivery, error) {
	query := map[string]string{
		"lat": strconv.FormatFloat(p.Lat, 'f', -1, 64),
		"lng": strconv.FormatFloat(p.Lng, 'f', -1, 64),
	}
	if radiusKM > 0 {
		query["radius"] = strconv.FormatFloat(radiusKM, 'f', -1, 64)
	}
	var list []NearbyDelivery
	if err := a.get(ctx, "/deliveries/nearby", query, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Delivery one delivery visible to the caller
func (a *API) Delivery(ctx context.Context, id uint) (*Delivery, error) {
	var d Delivery
	if err := a.get(ctx, deliveryPath(id, ""), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeliveryMap markers, route and bounds
func (a *API) DeliveryMap(ctx context.Context, id uint) (*geo.MapView, error) {
	var view geo.MapView
	if err := a.get(ctx, deliveryPath(id, "/map"), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Accept assigns the caller as partner; IsConflict when someone was faster
func (a *API) Accept(ctx context.Context, id uint, partnerName, partnerPhone string) (*AcceptResult, error) {
	body := map[string]string{"partnerName": partnerName, "partnerPhone": partnerPhone}
	var result AcceptResult
	if err := a.put(ctx, deliveryPath(id, "/accept"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel cancels as sender or partner; after pickup opts.Emergency is required
func (a *API) Cancel(ctx context.Context, id uint, opts CancelOptions) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/cancel", opts)
}

// VerifyItem sender approves or rejects the item photo
func (a *API) VerifyItem(ctx context.Context, id uint, approved bool) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/verify-item", map[string]bool{"approved": approved})
}

// MarkInTransit partner left the pickup point
func (a *API) MarkInTransit(ctx context.Context, id uint) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/in-transit", nil)
}

// Deliver partner handed the item over
func (a *API) Deliver(ctx context.Context, id uint) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/deliver", nil)
}

// Complete sender confirms receipt
func (a *API) Complete(ctx context.Context, id uint) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/complete", nil)
}

// Dispute sender rejects receipt
func (a *API) Dispute(ctx context.Context, id uint) (*Delivery, error) {
	return a.deliveryAction(ctx, id, "/dispute", nil)
}

// Rate sender rates the partner once, 1..5
func (a *API) Rate(ctx context.Context, id uint, rating int, feedback string) (*Delivery, error) {
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	body := map[string]interface{}{"rating": rating, "feedback": feedback}
	return a.deliveryAction(ctx, id, "/rate", body)
}

// UploadImage uploads an item or delivery photo for id
func (a *API) UploadImage(ctx context.Context, id uint, photoType, filename string, content []byte) (*PhotoUpload, error) {
	if photoType != PhotoItem && photoType != PhotoDelivery {
		return nil, &ValidationError{Field: "type", Message: "must be item or delivery"}
	}
	if len(content) == 0 {
		return nil, &ValidationError{Field: "image", Message: "file is empty"}
	}
	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("deliveryId", strconv.FormatUint(uint64(id), 10)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("type", photoType); err != nil {
			return nil, "", err
		}
		part, err := w.CreateFormFile("image", filepath.Base(filename))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
	var upload PhotoUpload
	if _, err := a.call(ctx, request{method: http.MethodPost, path: "/deliveries/upload-image", build: build}, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (a *API) deliveryAction(ctx context.Context, id uint, action string, body interface{}) (*Delivery, error) {
	var d Delivery
	if err := a.put(ctx, deliveryPath(id, action), body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func deliveryPath(id uint, suffix string) string {
	return fmt.Sprintf("/deliveries/%d%s", id, suffix)
}
