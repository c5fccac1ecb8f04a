package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/parcelpal/internal/authz"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/queue"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type serviceFixture struct {
	cfg        *config.Config
	db         *gorm.DB
	hub        *realtime.Hub
	tracker    *geo.Tracker
	auth       *AuthService
	profiles   *ProfileService
	deliveries *DeliveryService
	chats      *ChatService
	rewards    *RewardService
	gate       *RealtimeGate
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWT:  config.JWTConfig{SecretKey: "test-secret", AccessExpireMinutes: 15, RefreshExpireHours: 24},
		Auth: config.AuthConfig{ProvisionProfileOnSignup: true, PasswordMinLength: 6},
		Delivery: config.DeliveryConfig{
			NearbyRadiusKM:          10,
			MaxRadiusKM:             50,
			DefaultTimeLimitMinutes: 60,
			PendingTTLMinutes:       30,
		},
		Chat:    config.ChatConfig{MaxMessageLength: 2000},
		Rewards: config.RewardsConfig{PerDelivery: 10, FiveStarBonus: 5, OnTimeBonus: 3},
	}
}

func setupServiceTest(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("authz init failed: %v", err)
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}

	cfg := newTestConfig()
	hub := realtime.NewHub(64)
	tracker := geo.NewTracker()
	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	chatRepo := repository.NewChatRepository(db)
	rewardRepo := repository.NewRewardRepository(db)

	rewards := NewRewardService(cfg, db, userRepo, deliveryRepo, rewardRepo, hub)
	profiles := NewProfileService(accountRepo, userRepo, deliveryRepo, tracker, hub)
	f := &serviceFixture{
		cfg:      cfg,
		db:       db,
		hub:      hub,
		tracker:  tracker,
		auth:     NewAuthService(cfg, db, accountRepo, userRepo),
		profiles: profiles,
		deliveries: NewDeliveryService(DeliveryServiceOptions{
			Config:       cfg,
			DB:           db,
			DeliveryRepo: deliveryRepo,
			ChatRepo:     chatRepo,
			UserRepo:     userRepo,
			Authz:        authzService,
			Tracker:      tracker,
			Publisher:    hub,
			QueueClient:  queueClient,
			Rewards:      rewards,
		}),
		chats:   NewChatService(cfg, db, chatRepo, userRepo, authzService, hub),
		rewards: rewards,
		gate:    NewRealtimeGate(deliveryRepo, chatRepo, profiles),
	}
	return f
}

func (f *serviceFixture) registerUser(t *testing.T, email, name string) uint {
	t.Helper()
	result, err := f.auth.Register(RegisterInput{Email: email, Password: "secret123", FullName: name})
	if err != nil {
		t.Fatalf("register %s failed: %v", email, err)
	}
	return result.Account.ID
}

func validCreateInput() CreateDeliveryInput {
	return CreateDeliveryInput{
		ItemName:    "Laptop charger",
		Phone:       "98765 43210",
		Amount:      models.NewMoneyFromFloat(150),
		TimeLimit:   45,
		Source:      &geo.Location{Lat: 28.6139, Lng: 77.2090, Address: "Connaught Place"},
		Destination: &geo.Location{Lat: 28.5355, Lng: 77.3910, Address: "Sector 18, Noida"},
	}
}

func (f *serviceFixture) createDelivery(t *testing.T, senderID uint) *models.Delivery {
	t.Helper()
	d, err := f.deliveries.Create(context.Background(), senderID, validCreateInput())
	if err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}
	return d
}

func (f *serviceFixture) acceptDelivery(t *testing.T, partnerID, deliveryID uint) *AcceptResult {
	t.Helper()
	result, err := f.deliveries.Accept(context.Background(), partnerID, deliveryID, AcceptInput{PartnerPhone: "9999999999"})
	if err != nil {
		t.Fatalf("accept delivery failed: %v", err)
	}
	return result
}

// driveToCompleted walks a delivery through the happy path
func (f *serviceFixture) driveToCompleted(t *testing.T, senderID, partnerID uint) *models.Delivery {
	t.Helper()
	ctx := context.Background()
	d := f.createDelivery(t, senderID)
	f.acceptDelivery(t, partnerID, d.ID)
	steps := []func() (*models.Delivery, error){
		func() (*models.Delivery, error) {
			return f.deliveries.AttachPhoto(ctx, partnerID, d.ID, "item", "/uploads/deliveries/item.jpg")
		},
		func() (*models.Delivery, error) { return f.deliveries.VerifyItem(ctx, senderID, d.ID, true) },
		func() (*models.Delivery, error) { return f.deliveries.MarkInTransit(ctx, partnerID, d.ID) },
		func() (*models.Delivery, error) {
			return f.deliveries.AttachPhoto(ctx, partnerID, d.ID, "delivery", "/uploads/deliveries/done.jpg")
		},
		func() (*models.Delivery, error) { return f.deliveries.Deliver(ctx, partnerID, d.ID) },
		func() (*models.Delivery, error) { return f.deliveries.Complete(ctx, senderID, d.ID) },
	}
	var current *models.Delivery
	for i, step := range steps {
		next, err := step()
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		current = next
	}
	return current
}
