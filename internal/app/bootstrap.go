package app

import (
	"errors"
	"strings"

	"github.com/parcelpal/internal/cache"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/provider"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/router"
	"github.com/parcelpal/internal/worker"
)

// BuildRunner assembles the services for mode
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !validMode(mode) {
		return nil, errors.New("unknown mode: " + mode)
	}

	container := provider.NewContainer(cfg)

	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		if bridge := buildBridge(cfg, container); bridge != nil {
			services = append(services, bridge)
		}
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	if cfg.Queue.Enabled && (mode == ModeAll || mode == ModeWorker) {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(cfg, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	} else if !cfg.Queue.Enabled {
		if mode == ModeWorker {
			return nil, errors.New("worker mode requires queue.enabled")
		}
		// without a worker the api process owns the stale-request sweep
		services = append(services, worker.NewSweeperService(cfg, container.DeliveryService))
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// buildBridge shares realtime events across api instances through redis
func buildBridge(cfg *config.Config, container *provider.Container) *realtime.RedisBridge {
	if !cfg.Realtime.RedisBridge {
		return nil
	}
	client := cache.Client()
	if client == nil {
		logger.Warnw("app_realtime_bridge_skipped", "reason", "redis disabled")
		return nil
	}
	channel := strings.TrimSpace(cfg.Realtime.Channel)
	if prefix := strings.TrimSpace(cfg.Redis.Prefix); prefix != "" && channel != "" {
		channel = prefix + ":" + channel
	}
	bridge, err := realtime.NewRedisBridge(client, channel, container.Hub)
	if err != nil {
		logger.Warnw("app_realtime_bridge_failed", "error", err)
		return nil
	}
	return bridge
}

func validMode(mode string) bool {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return true
	default:
		return false
	}
}

// Run application entry point
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "services", runner.Names())
	return RunWithOptions(runner, opts)
}
