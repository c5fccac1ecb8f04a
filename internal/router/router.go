package router

import (
	"fmt"
	"strings"

	"github.com/parcelpal/internal/cache"
	"github.com/parcelpal/internal/config"
	publichandlers "github.com/parcelpal/internal/http/handlers/public"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	h := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pp"
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_rate_limited",
	}
	apiRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:api", redisPrefix),
		WindowSeconds: cfg.Security.APIRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.APIRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}
	loginLimit := rateLimiter(loginRule, KeyByIPAndJSONField("email"))
	apiLimit := rateLimiter(apiRule, KeyByUser)

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.Static("/uploads", c.UploadService.UploadDir())

	r.GET("/health", h.Health)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", h.Health)
		apiV1.GET("/config/map", h.GetMapConfig)
		apiV1.GET("/realtime", h.Realtime)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", loginLimit, h.Register)
			auth.POST("/login", loginLimit, h.Login)
			auth.POST("/refresh", apiLimit, h.Refresh)
		}

		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(c.AuthService), apiLimit)
		{
			user.POST("/auth/logout", h.Logout)

			user.GET("/users/me", h.GetMe)
			user.POST("/users", h.ProvisionProfile)
			user.PUT("/users/me", h.UpdateMe)
			user.PUT("/users/me/location", h.UpdateLocation)
			user.PUT("/users/me/availability", h.SetAvailability)
			user.GET("/users/me/stats", h.GetMyStats)
			user.GET("/users/:id", h.GetUser)
			user.GET("/users", h.LookupUsers)

			user.GET("/rewards", h.ListRewards)
			user.POST("/rewards/redeem", h.RedeemReward)

			user.POST("/deliveries", h.CreateDelivery)
			user.GET("/deliveries", h.ListDeliveries)
			user.GET("/deliveries/nearby", h.NearbyDeliveries)
			user.POST("/deliveries/upload-image", h.UploadDeliveryImage)
			user.GET("/deliveries/:id", h.GetDelivery)
			user.GET("/deliveries/:id/map", h.GetDeliveryMap)
			user.GET("/deliveries/:id/chat", h.GetDeliveryChat)
			user.PUT("/deliveries/:id/accept", h.AcceptDelivery)
			user.PUT("/deliveries/:id/cancel", h.CancelDelivery)
			user.PUT("/deliveries/:id/verify-item", h.VerifyItem)
			user.PUT("/deliveries/:id/in-transit", h.MarkInTransit)
			user.PUT("/deliveries/:id/deliver", h.DeliverDelivery)
			user.PUT("/deliveries/:id/complete", h.CompleteDelivery)
			user.PUT("/deliveries/:id/dispute", h.DisputeDelivery)
			user.PUT("/deliveries/:id/rate", h.RateDelivery)

			user.GET("/chats/:id", h.GetChat)
			user.GET("/chats/:id/messages", h.ListMessages)
			user.POST("/chats/:id/messages", h.SendMessage)
			user.PUT("/chats/:id/pin", h.PinAmount)
			user.PUT("/chats/:id/confirm", h.ConfirmAmount)

			user.GET("/geocode/reverse", h.ReverseGeocode)
			user.GET("/geocode/search", h.SearchGeocode)
		}
	}

	return r
}

// rateLimiter shares counters through redis when it is up, otherwise counts in-process
func rateLimiter(rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	local := NewLocalRateLimiter(rule)
	if client := cache.Client(); client != nil {
		return RateLimitMiddleware(client, rule, keyFunc, local)
	}
	return local.Middleware(keyFunc)
}
