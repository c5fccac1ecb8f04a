package queue

import (
	"encoding/json"

	"github.com/parcelpal/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskDeliveryCompleted credits completion rewards and counters
	TaskDeliveryCompleted = constants.TaskDeliveryCompleted
	// TaskDeliveryRated applies the rating bonus and recomputes the partner average
	TaskDeliveryRated = constants.TaskDeliveryRated
	// TaskDeliveryNotify pushes a new request to available partners nearby
	TaskDeliveryNotify = constants.TaskDeliveryNotify
)

// DeliveryPayload every delivery task carries only the row id
type DeliveryPayload struct {
	DeliveryID uint `json:"delivery_id"`
}

// NewDeliveryTask builds a delivery task of the given type
func NewDeliveryTask(taskType string, payload DeliveryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// DecodeDeliveryPayload parses a delivery task body
func DecodeDeliveryPayload(task *asynq.Task) (DeliveryPayload, error) {
	var payload DeliveryPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
