package service

import (
	"context"

	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/realtime"
)

// emit publishes best effort; a nil publisher disables push
func emit(ctx context.Context, publisher realtime.Publisher, eventType, topic string, data interface{}) {
	if publisher == nil {
		return
	}
	evt, err := realtime.NewEvent(eventType, topic, data)
	if err != nil {
		logger.Warnw("realtime_event_build_failed", "type", eventType, "topic", topic, "error", err)
		return
	}
	publisher.Publish(ctx, evt)
}
