package worker

import (
	"context"
	"errors"

	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/provider"
	"github.com/parcelpal/internal/queue"
	"github.com/parcelpal/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer async task consumer
type Consumer struct {
	*provider.Container
}

// NewConsumer creates the consumer
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register binds task handlers
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskDeliveryCompleted, c.handleDeliveryCompleted)
	mux.HandleFunc(queue.TaskDeliveryRated, c.handleDeliveryRated)
	mux.HandleFunc(queue.TaskDeliveryNotify, c.handleDeliveryNotify)
}

func (c *Consumer) handleDeliveryCompleted(ctx context.Context, task *asynq.Task) error {
	deliveryID, ok, err := c.decode(task, "worker_delivery_completed")
	if !ok {
		return err
	}
	if c.RewardService == nil {
		logger.Warnw("worker_delivery_completed_skip_reward_service_nil", "delivery_id", deliveryID)
		return nil
	}
	if err := c.RewardService.ApplyCompletion(ctx, deliveryID); err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			logger.Debugw("worker_delivery_completed_skip_not_found", "delivery_id", deliveryID)
			return nil
		}
		logger.Warnw("worker_delivery_completed_failed", "delivery_id", deliveryID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleDeliveryRated(ctx context.Context, task *asynq.Task) error {
	deliveryID, ok, err := c.decode(task, "worker_delivery_rated")
	if !ok {
		return err
	}
	if c.RewardService == nil {
		logger.Warnw("worker_delivery_rated_skip_reward_service_nil", "delivery_id", deliveryID)
		return nil
	}
	if err := c.RewardService.ApplyRating(ctx, deliveryID); err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			logger.Debugw("worker_delivery_rated_skip_not_found", "delivery_id", deliveryID)
			return nil
		}
		logger.Warnw("worker_delivery_rated_failed", "delivery_id", deliveryID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleDeliveryNotify(ctx context.Context, task *asynq.Task) error {
	deliveryID, ok, err := c.decode(task, "worker_delivery_notify")
	if !ok {
		return err
	}
	if c.DeliveryService == nil {
		return nil
	}
	notified, err := c.DeliveryService.NotifyNearbyPartners(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			logger.Debugw("worker_delivery_notify_skip_not_found", "delivery_id", deliveryID)
			return nil
		}
		logger.Warnw("worker_delivery_notify_failed", "delivery_id", deliveryID, "error", err)
		return err
	}
	logger.Debugw("worker_delivery_notify_done", "delivery_id", deliveryID, "notified", notified)
	return nil
}

// decode returns ok=false when the task should not be processed; err is then
// the value to hand back to asynq.
func (c *Consumer) decode(task *asynq.Task, event string) (uint, bool, error) {
	if c == nil || task == nil {
		logger.Debugw(event+"_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return 0, false, nil
	}
	payload, err := queue.DecodeDeliveryPayload(task)
	if err != nil {
		logger.Warnw(event+"_unmarshal_failed", "error", err)
		return 0, false, err
	}
	if payload.DeliveryID == 0 {
		logger.Debugw(event+"_skip_invalid_payload", "delivery_id", payload.DeliveryID)
		return 0, false, nil
	}
	return payload.DeliveryID, true, nil
}
