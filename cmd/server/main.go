package main

import (
	"flag"
	"os"
	"strings"
	"syscall"

	"github.com/parcelpal/internal/app"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"

	"github.com/gin-gonic/gin"
)

func main() {
	mode := flag.String("mode", app.ModeAll, "run mode: all (default), api, worker")
	migrateOnly := flag.Bool("migrate-only", false, "migrate the schema and exit")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()

	if weak := isWeakSecret(cfg.JWT.SecretKey); weak && cfg.Server.Mode == "release" {
		logger.Errorw("server_jwt_secret_weak", "mode", cfg.Server.Mode)
		os.Exit(1)
	} else if weak {
		logger.Warnw("server_jwt_secret_weak", "mode", cfg.Server.Mode)
	}

	logger.Infow("server_config",
		"mode", *mode,
		"db_driver", cfg.Database.Driver,
		"redis", cfg.Redis.Enabled,
		"queue", cfg.Queue.Enabled,
		"geocoding", cfg.Geocoding.Enabled,
		"realtime_bridge", cfg.Realtime.RedisBridge,
	)

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		logger.Errorw("server_database_init_failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if err := models.AutoMigrate(models.DB); err != nil {
		logger.Errorw("server_database_migrate_failed", "error", err)
		os.Exit(1)
	}
	if *migrateOnly {
		logger.Infow("server_migrated")
		return
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    *mode,
	}); err != nil {
		logger.Errorw("server_exited", "error", err)
		os.Exit(1)
	}
}

// isWeakSecret short keys and the shipped jwt.secret placeholder
func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	for _, placeholder := range []string{"change-me", "changeme", "your-secret-key"} {
		if strings.Contains(normalized, placeholder) {
			return true
		}
	}
	return false
}
