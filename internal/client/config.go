package client

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config client settings
type Config struct {
	APIURL    string        `mapstructure:"api_url"`
	MapLat    float64       `mapstructure:"map_default_lat"`
	MapLng    float64       `mapstructure:"map_default_lng"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LoadConfig reads PARCELPAL_* environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("parcelpal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("map_default_lat", 28.6139)
	v.SetDefault("map_default_lng", 77.2090)
	v.SetDefault("timeout", 15*time.Second)
	v.SetDefault("user_agent", "parcelpal-client/1.0")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	return &cfg, nil
}
