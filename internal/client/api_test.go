package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/parcelpal/internal/geo"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, code int, msg string, data interface{}, extra ...map[string]interface{}) {
	body := map[string]interface{}{"status_code": code, "msg": msg, "data": data}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func tokenServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshes.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "refresh-1" {
				writeEnvelope(w, CodeUnauthorized, "invalid refresh token", nil)
				return
			}
			writeEnvelope(w, CodeOK, "success", map[string]interface{}{
				"account": Account{ID: 1, Email: "asha@example.com"},
				"tokens":  TokenPair{AccessToken: "fresh", RefreshToken: "refresh-2"},
			})
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &refreshes
}

func TestCallDecodesEnvelopeAndPagination(t *testing.T) {
	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/deliveries", r.URL.Path)
		assert.Equal(t, "sender", r.URL.Query().Get("role"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
		assert.Equal(t, "parcelpal-test", r.Header.Get("User-Agent"))
		writeEnvelope(w, CodeOK, "success", []Delivery{{ID: 4, ItemName: "Books", DeliveryAmount: decimal.RequireFromString("120.50")}},
			map[string]interface{}{"pagination": Pagination{Page: 1, PageSize: 20, Total: 1, TotalPage: 1}})
	})

	api := NewAPI(srv.URL+"/", WithUserAgent("parcelpal-test"))
	api.SetTokens(TokenPair{AccessToken: "stale", RefreshToken: "refresh-1"})

	list, page, err := api.ListDeliveries(context.Background(), ListOptions{Role: "sender", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Books", list[0].ItemName)
	assert.True(t, list[0].DeliveryAmount.Equal(decimal.RequireFromString("120.5")))
	require.NotNil(t, page)
	assert.Equal(t, int64(1), page.Total)
}

func TestCallRefreshesOnceThenRetries(t *testing.T) {
	var calls atomic.Int32
	srv, refreshes := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeEnvelope(w, CodeUnauthorized, "token expired", nil)
			return
		}
		writeEnvelope(w, CodeOK, "success", Profile{ID: 1, FullName: "Asha"})
	})

	var saved []TokenPair
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "stale", RefreshToken: "refresh-1"})
	api.OnTokens(func(tp TokenPair) { saved = append(saved, tp) })

	profile, err := api.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.FullName)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), refreshes.Load())
	require.Len(t, saved, 1)
	assert.Equal(t, "refresh-2", saved[0].RefreshToken)
	assert.Equal(t, "fresh", api.Tokens().AccessToken)
}

func TestSecondUnauthorizedIsSessionError(t *testing.T) {
	srv, refreshes := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeUnauthorized, "token revoked", nil)
	})
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "stale", RefreshToken: "refresh-1"})

	_, err := api.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, CodeUnauthorized, CodeOf(err))
	assert.Equal(t, int32(1), refreshes.Load(), "refresh happens once")
}

func TestFailedRefreshIsSessionError(t *testing.T) {
	srv, refreshes := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeUnauthorized, "token expired", nil)
	})
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "stale", RefreshToken: "revoked"})

	_, err := api.Stats(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestUploadBodyIsRebuiltForRetry(t *testing.T) {
	var uploads atomic.Int32
	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		content, _ := io.ReadAll(file)
		assert.Equal(t, "photo.png", header.Filename)
		assert.Equal(t, "png-bytes", string(content))
		assert.Equal(t, "9", r.FormValue("deliveryId"))
		assert.Equal(t, PhotoItem, r.FormValue("type"))
		uploads.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeEnvelope(w, CodeUnauthorized, "token expired", nil)
			return
		}
		writeEnvelope(w, CodeOK, "success", PhotoUpload{ImageURL: "/uploads/deliveries/x.png"})
	})
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "stale", RefreshToken: "refresh-1"})

	upload, err := api.UploadImage(context.Background(), 9, PhotoItem, "/tmp/photo.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/deliveries/x.png", upload.ImageURL)
	assert.Equal(t, int32(2), uploads.Load())
}

func TestBusinessErrorsKeepCodeAndMessage(t *testing.T) {
	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/deliveries/5/chat":
			writeEnvelope(w, CodeNotFound, "chat not found", nil)
		case "/api/v1/deliveries/5/accept":
			writeEnvelope(w, CodeConflict, "delivery already taken", nil)
		default:
			writeEnvelope(w, CodeBadRequest, "invalid request", nil)
		}
	})
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "a"})
	ctx := context.Background()

	_, err := api.DeliveryChat(ctx, 5)
	assert.True(t, IsNotFound(err))

	_, err = api.Accept(ctx, 5, "Ravi", "9123456789")
	assert.True(t, IsConflict(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "delivery already taken", apiErr.Message)
	assert.Equal(t, "/deliveries/5/accept", apiErr.Path)

	_, err = api.Nearby(ctx, geo.Point{Lat: 28.6, Lng: 77.2}, 10)
	assert.True(t, IsValidation(err))
}

func TestNonEnvelopeResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/config/map" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
			return
		}
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()
	api := NewAPI(srv.URL)

	_, err := api.MapConfig(context.Background())
	assert.Equal(t, CodeUpstream, CodeOf(err))

	_, err = api.Rewards(context.Background())
	assert.ErrorIs(t, err, ErrResponseInvalid)
}

func TestNetworkErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	api := NewAPI(url)
	_, err := api.Login(context.Background(), "asha@example.com", "secret123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Empty(t, api.Tokens().AccessToken)
}

func TestLocalValidationSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, CodeOK, "success", nil)
	}))
	defer srv.Close()
	api := NewAPI(srv.URL)
	ctx := context.Background()

	valid := DeliveryForm{
		ItemName:    "Books",
		Phone:       "(987) 654-3210",
		Amount:      decimal.NewFromInt(100),
		TimeLimit:   60,
		Source:      &geo.Location{Lat: 28.6139, Lng: 77.2090},
		Destination: &geo.Location{Lat: 28.7041, Lng: 77.1025},
	}
	require.NoError(t, ValidateDeliveryForm(valid))

	cases := map[string]func(f *DeliveryForm){
		"item_name":       func(f *DeliveryForm) { f.ItemName = "  " },
		"phone":           func(f *DeliveryForm) { f.Phone = "98765" },
		"delivery_amount": func(f *DeliveryForm) { f.Amount = decimal.Zero },
		"source":          func(f *DeliveryForm) { f.Source = nil },
		"destination":     func(f *DeliveryForm) { f.Destination = &geo.Location{Lat: 120, Lng: 0} },
	}
	for field, mutate := range cases {
		form := valid
		mutate(&form)
		_, err := api.CreateDelivery(ctx, form)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), field)
		assert.Equal(t, field, vErr.Field)
	}

	_, err := api.Rate(ctx, 1, 0, "")
	assert.True(t, IsValidation(err))
	_, err = api.PinAmount(ctx, 1, decimal.NewFromInt(-5))
	assert.True(t, IsValidation(err))
	_, err = api.UploadImage(ctx, 1, "selfie", "a.png", []byte("x"))
	assert.True(t, IsValidation(err))
	assert.Zero(t, calls.Load())
}

func TestLogoutClearsTokensEvenOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeInternal, "internal error", nil)
	}))
	defer srv.Close()
	api := NewAPI(srv.URL)
	api.SetTokens(TokenPair{AccessToken: "a", RefreshToken: "r"})

	err := api.Logout(context.Background())
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Empty(t, api.Tokens().AccessToken)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PARCELPAL_API_URL", "https://api.parcelpal.test")
	t.Setenv("PARCELPAL_MAP_DEFAULT_LAT", "19.076")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.parcelpal.test", cfg.APIURL)
	assert.InDelta(t, 19.076, cfg.MapLat, 1e-9)
	assert.InDelta(t, 77.2090, cfg.MapLng, 1e-9)
	assert.True(t, strings.HasPrefix(FromConfig(cfg).BaseURL(), "https://"))
}
