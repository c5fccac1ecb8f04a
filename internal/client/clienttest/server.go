// Package clienttest runs the real api on an in-memory database so SDK
// packages can be tested end to end.
package clienttest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/provider"
	"github.com/parcelpal/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Password used for every account the harness registers
const Password = "secret123"

var databases atomic.Int64

// Server api served by httptest
type Server struct {
	URL       string
	Config    *config.Config
	Container *provider.Container
}

// NewServer starts the api; configure runs before the container is built
func NewServer(t testing.TB, configure ...func(*config.Config)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:clienttest_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), databases.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	previous := models.DB
	models.DB = db

	cfg := config.Defaults()
	cfg.JWT.SecretKey = "clienttest-secret"
	cfg.Geocoding.Enabled = false
	cfg.Upload.Dir = t.TempDir()
	cfg.Security.LoginRateLimit.MaxAttempts = 0
	cfg.Security.APIRateLimit.MaxAttempts = 0
	for _, fn := range configure {
		fn(cfg)
	}

	container := provider.NewContainer(cfg)
	srv := httptest.NewServer(router.SetupRouter(cfg, container))
	t.Cleanup(func() {
		srv.Close()
		models.DB = previous
		_ = sqlDB.Close()
	})
	return &Server{URL: srv.URL, Config: cfg, Container: container}
}

// API unauthenticated client
func (s *Server) API() *client.API {
	return client.NewAPI(s.URL)
}

// SignUp registers email and returns a signed-in client
func (s *Server) SignUp(t testing.TB, email, name string) *client.API {
	t.Helper()
	api, _ := s.Account(t, email, name)
	return api
}

// Account registers email and returns a signed-in client and the user id
func (s *Server) Account(t testing.TB, email, name string) (*client.API, uint) {
	t.Helper()
	api := s.API()
	session, err := api.Register(context.Background(), client.RegisterInput{
		Email:    email,
		Password: Password,
		FullName: name,
		Phone:    "9876543210",
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", email, err)
	}
	return api, session.Account.ID
}

// Form valid delivery request from Connaught Place to Pitampura
func Form(item string) client.DeliveryForm {
	return client.DeliveryForm{
		ItemName:    item,
		Phone:       "98765 43210",
		Amount:      decimal.NewFromInt(120),
		TimeLimit:   60,
		Source:      &geo.Location{Lat: 28.6139, Lng: 77.2090, Address: "Connaught Place"},
		Destination: &geo.Location{Lat: 28.7041, Lng: 77.1025, Address: "Pitampura"},
	}
}

// Near a point next to the Form pickup
var Near = geo.Point{Lat: 28.62, Lng: 77.21}

// PNG small valid image for uploads
func PNG(t testing.TB) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png failed: %v", err)
	}
	return buf.Bytes()
}
