package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue default queue name
	DefaultQueue = constants.QueueDefault
	// CriticalQueue reward and counter bookkeeping
	CriticalQueue = constants.QueueCritical
)

// completed tasks stay visible this long, which is also the dedupe window
const taskRetention = 24 * time.Hour

// Client asynq client wrapper; a disabled client enqueues nothing
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient creates the queue client
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	client := asynq.NewClient(buildRedisOpt(cfg))
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled reports whether tasks are sent to redis
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close closes the client
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDeliveryCompleted schedules completion rewards
func (c *Client) EnqueueDeliveryCompleted(deliveryID uint, opts ...asynq.Option) error {
	return c.enqueue(TaskDeliveryCompleted, deliveryID, CriticalQueue, opts...)
}

// EnqueueDeliveryRated schedules the rating bonus
func (c *Client) EnqueueDeliveryRated(deliveryID uint, opts ...asynq.Option) error {
	return c.enqueue(TaskDeliveryRated, deliveryID, CriticalQueue, opts...)
}

// EnqueueDeliveryNotify schedules the nearby-partner fan-out
func (c *Client) EnqueueDeliveryNotify(deliveryID uint, opts ...asynq.Option) error {
	return c.enqueue(TaskDeliveryNotify, deliveryID, c.defaultQueue, opts...)
}

// enqueue sends one task per (type, delivery). A repeated call while the
// first is still retained by asynq is a no-op, so a retried complete or rate
// request cannot credit rewards twice.
func (c *Client) enqueue(taskType string, deliveryID uint, queueName string, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewDeliveryTask(taskType, DeliveryPayload{DeliveryID: deliveryID})
	if err != nil {
		return err
	}
	options := append([]asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(5),
		asynq.TaskID(TaskID(taskType, deliveryID)),
		asynq.Retention(taskRetention),
	}, opts...)
	_, err = c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// TaskID stable id of a delivery task
func TaskID(taskType string, deliveryID uint) string {
	return fmt.Sprintf("%s:%d", taskType, deliveryID)
}

// BuildServerConfig asynq server options from config
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1, CriticalQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
