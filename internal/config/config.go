package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/parcelpal/internal/logger"

	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Upload    UploadConfig    `mapstructure:"upload"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Map       MapConfig       `mapstructure:"map"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
}

// ServerConfig http server
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	Mode      string `mapstructure:"mode"` // debug / release
	PublicURL string `mapstructure:"public_url"`
	// ShutdownTimeoutSeconds grace period for in-flight requests and sockets
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// LogConfig log sink options
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// ToLoggerOptions converts to logger options
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Stdout:     c.Stdout,
	}
}

// DatabasePoolConfig connection pool
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig database
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig token signing
type JWTConfig struct {
	SecretKey           string `mapstructure:"secret"`
	AccessExpireMinutes int    `mapstructure:"access_expire_minutes"`
	RefreshExpireHours  int    `mapstructure:"refresh_expire_hours"`
}

// AccessTTL access token lifetime
func (c JWTConfig) AccessTTL() time.Duration {
	if c.AccessExpireMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.AccessExpireMinutes) * time.Minute
}

// RefreshTTL refresh token lifetime
func (c JWTConfig) RefreshTTL() time.Duration {
	if c.RefreshExpireHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RefreshExpireHours) * time.Hour
}

// AuthConfig account and profile options
type AuthConfig struct {
	ProvisionProfileOnSignup bool `mapstructure:"provision_profile_on_signup"`
	PasswordMinLength        int  `mapstructure:"password_min_length"`
}

// RedisConfig redis
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig asynq queue
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// UploadConfig photo upload limits
type UploadConfig struct {
	Dir               string   `mapstructure:"dir"`
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedTypes      []string `mapstructure:"allowed_types"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxWidth          int      `mapstructure:"max_width"`
	MaxHeight         int      `mapstructure:"max_height"`
}

// CORSConfig cross origin
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig request throttling
type SecurityConfig struct {
	LoginRateLimit RateLimitConfig `mapstructure:"login_rate_limit"`
	APIRateLimit   RateLimitConfig `mapstructure:"api_rate_limit"`
}

// RateLimitConfig fixed window limiter
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// GeocodingConfig public geocoding service
type GeocodingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BaseURL         string `mapstructure:"base_url"`
	UserAgent       string `mapstructure:"user_agent"`
	MinIntervalMS   int    `mapstructure:"min_interval_ms"`
	TimeoutMS       int    `mapstructure:"timeout_ms"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// MapConfig map defaults served to clients
type MapConfig struct {
	DefaultLat float64 `mapstructure:"default_lat"`
	DefaultLng float64 `mapstructure:"default_lng"`
	TileURL    string  `mapstructure:"tile_url"`
}

// DeliveryConfig lifecycle tuning
type DeliveryConfig struct {
	NearbyRadiusKM          float64 `mapstructure:"nearby_radius_km"`
	MaxRadiusKM             float64 `mapstructure:"max_radius_km"`
	DefaultTimeLimitMinutes int     `mapstructure:"default_time_limit_minutes"`
	PendingTTLMinutes       int     `mapstructure:"pending_ttl_minutes"`
	SweepIntervalSeconds    int     `mapstructure:"sweep_interval_seconds"`
	PollIntervalSeconds     int     `mapstructure:"poll_interval_seconds"`
}

// ChatConfig negotiation policy
type ChatConfig struct {
	AllowRepinAfterConfirm bool `mapstructure:"allow_repin_after_confirm"`
	MaxMessageLength       int  `mapstructure:"max_message_length"`
}

// RewardsConfig earn rules
type RewardsConfig struct {
	PerDelivery   int `mapstructure:"per_delivery"`
	FiveStarBonus int `mapstructure:"five_star_bonus"`
	OnTimeBonus   int `mapstructure:"on_time_bonus"`
}

// RealtimeConfig push channel
type RealtimeConfig struct {
	RedisBridge bool   `mapstructure:"redis_bridge"`
	Channel     string `mapstructure:"channel"`
	SendBuffer  int    `mapstructure:"send_buffer"`
}

// Load reads config.yml, env and defaults
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	SetDefaults(viper.GetViper())

	// SERVER_PORT overrides server.port
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("config unmarshal failed: %w", err))
	}

	return &cfg
}

// Defaults config built from defaults only, ignoring files and env
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("config defaults unmarshal failed: %w", err))
	}
	return &cfg
}

// SetDefaults registers every default key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "parcelpal.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.stdout", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/parcelpal.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expire_minutes", 60)
	v.SetDefault("jwt.refresh_expire_hours", 168)
	v.SetDefault("auth.provision_profile_on_signup", true)
	v.SetDefault("auth.password_min_length", 6)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pp")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size", 10485760)
	v.SetDefault("upload.allowed_types", []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	})
	v.SetDefault("upload.allowed_extensions", []string{
		".jpg",
		".jpeg",
		".png",
		".gif",
		".webp",
	})
	v.SetDefault("upload.max_width", 8192)
	v.SetDefault("upload.max_height", 8192)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.login_rate_limit.block_seconds", 900)
	v.SetDefault("security.api_rate_limit.window_seconds", 60)
	v.SetDefault("security.api_rate_limit.max_attempts", 300)
	v.SetDefault("security.api_rate_limit.block_seconds", 0)
	v.SetDefault("geocoding.enabled", true)
	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "parcelpal/1.0")
	v.SetDefault("geocoding.min_interval_ms", 1000)
	v.SetDefault("geocoding.timeout_ms", 5000)
	v.SetDefault("geocoding.cache_ttl_seconds", 86400)
	v.SetDefault("map.default_lat", 28.6139)
	v.SetDefault("map.default_lng", 77.2090)
	v.SetDefault("map.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("delivery.nearby_radius_km", 10)
	v.SetDefault("delivery.max_radius_km", 100)
	v.SetDefault("delivery.default_time_limit_minutes", 60)
	v.SetDefault("delivery.pending_ttl_minutes", 0)
	v.SetDefault("delivery.sweep_interval_seconds", 60)
	v.SetDefault("delivery.poll_interval_seconds", 10)
	v.SetDefault("chat.allow_repin_after_confirm", false)
	v.SetDefault("chat.max_message_length", 2000)
	v.SetDefault("rewards.per_delivery", 10)
	v.SetDefault("rewards.five_star_bonus", 5)
	v.SetDefault("rewards.on_time_bonus", 3)
	v.SetDefault("realtime.redis_bridge", false)
	v.SetDefault("realtime.channel", "realtime:events")
	v.SetDefault("realtime.send_buffer", 64)
}
