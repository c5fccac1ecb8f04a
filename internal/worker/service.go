package worker

import (
	"context"
	"errors"
	"time"

	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultSweepInterval = time.Minute

// Service async queue worker plus the stale-request sweeper
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService creates the worker service
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval(cfg.Delivery),
	}, nil
}

// Name service name
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start runs the sweeper and blocks on the asynq server
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.DeliveryService != nil {
		go RunSweeper(ctx, s.consumer.DeliveryService, s.sweepInterval)
	}
	return s.server.Run(s.mux)
}

// Stop shuts the asynq server down
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// StaleExpirer cancels pending requests nobody accepted in time
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// RunSweeper expires stale requests every interval until ctx ends.
// One sweep runs at a time; a slow sweep delays the next tick.
func RunSweeper(ctx context.Context, expirer StaleExpirer, interval time.Duration) {
	if expirer == nil {
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	runOnce := func() {
		if _, err := expirer.ExpireStale(ctx, time.Now()); err != nil {
			logger.Warnw("worker_expire_stale_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func sweepInterval(cfg config.DeliveryConfig) time.Duration {
	if cfg.SweepIntervalSeconds <= 0 {
		return defaultSweepInterval
	}
	return time.Duration(cfg.SweepIntervalSeconds) * time.Second
}

// SweeperService runs the sweeper on its own when the queue worker is off
type SweeperService struct {
	expirer  StaleExpirer
	interval time.Duration
	done     chan struct{}
}

// NewSweeperService creates a standalone sweeper
func NewSweeperService(cfg *config.Config, expirer StaleExpirer) *SweeperService {
	interval := defaultSweepInterval
	if cfg != nil {
		interval = sweepInterval(cfg.Delivery)
	}
	return &SweeperService{expirer: expirer, interval: interval, done: make(chan struct{})}
}

// Name service name
func (s *SweeperService) Name() string {
	return "sweeper"
}

// Start blocks until ctx ends
func (s *SweeperService) Start(ctx context.Context) error {
	defer close(s.done)
	RunSweeper(ctx, s.expirer, s.interval)
	<-ctx.Done()
	return nil
}

// Stop waits for the running sweep to return
func (s *SweeperService) Stop(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
