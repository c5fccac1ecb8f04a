package provider

import (
	"time"

	"github.com/parcelpal/internal/authz"
	"github.com/parcelpal/internal/cache"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/geocoding"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/queue"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"
	"github.com/parcelpal/internal/service"
)

// Container dependency container
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *realtime.Hub
	Tracker     *geo.Tracker
	Geocoder    *geocoding.Client

	// Repositories
	AccountRepo  repository.AccountRepository
	UserRepo     repository.UserRepository
	DeliveryRepo repository.DeliveryRepository
	ChatRepo     repository.ChatRepository
	RewardRepo   repository.RewardRepository

	// Services
	AuthzService    *authz.Service
	AuthService     *service.AuthService
	ProfileService  *service.ProfileService
	DeliveryService *service.DeliveryService
	ChatService     *service.ChatService
	RewardService   *service.RewardService
	UploadService   *service.UploadService
	RealtimeGate    *service.RealtimeGate
}

// NewContainer wires repositories and services on models.DB
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         realtime.NewHub(cfg.Realtime.SendBuffer),
		Tracker:     geo.NewTracker(),
		Geocoder: geocoding.New(geocoding.Config{
			Enabled:     cfg.Geocoding.Enabled,
			BaseURL:     cfg.Geocoding.BaseURL,
			UserAgent:   cfg.Geocoding.UserAgent,
			MinInterval: time.Duration(cfg.Geocoding.MinIntervalMS) * time.Millisecond,
			Timeout:     time.Duration(cfg.Geocoding.TimeoutMS) * time.Millisecond,
			CacheTTL:    time.Duration(cfg.Geocoding.CacheTTLSeconds) * time.Second,
		}),
	}

	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AccountRepo = repository.NewAccountRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.DeliveryRepo = repository.NewDeliveryRepository(db)
	c.ChatRepo = repository.NewChatRepository(db)
	c.RewardRepo = repository.NewRewardRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService

	db := models.DB
	c.AuthService = service.NewAuthService(c.Config, db, c.AccountRepo, c.UserRepo)
	c.ProfileService = service.NewProfileService(c.AccountRepo, c.UserRepo, c.DeliveryRepo, c.Tracker, c.Hub)
	c.RewardService = service.NewRewardService(c.Config, db, c.UserRepo, c.DeliveryRepo, c.RewardRepo, c.Hub)
	c.DeliveryService = service.NewDeliveryService(service.DeliveryServiceOptions{
		Config:       c.Config,
		DB:           db,
		DeliveryRepo: c.DeliveryRepo,
		ChatRepo:     c.ChatRepo,
		UserRepo:     c.UserRepo,
		Authz:        c.AuthzService,
		Geocoder:     c.Geocoder,
		Tracker:      c.Tracker,
		Publisher:    c.Hub,
		QueueClient:  c.QueueClient,
		Rewards:      c.RewardService,
	})
	c.ChatService = service.NewChatService(c.Config, db, c.ChatRepo, c.UserRepo, c.AuthzService, c.Hub)
	c.UploadService = service.NewUploadService(c.Config, c.DeliveryService)
	c.RealtimeGate = service.NewRealtimeGate(c.DeliveryRepo, c.ChatRepo, c.ProfileService)
}
