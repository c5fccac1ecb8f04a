package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/parcelpal/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBridge fans events out through a redis pub/sub channel so every API
// instance delivers them to its local subscribers.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	cancel  context.CancelFunc
}

// NewRedisBridge attaches a bridge to hub
func NewRedisBridge(client *redis.Client, channel string, hub *Hub) (*RedisBridge, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "realtime:events"
	}
	b := &RedisBridge{client: client, channel: channel, hub: hub}
	return b, nil
}

// Name service name
func (b *RedisBridge) Name() string {
	return "realtime-bridge"
}

// Forward publishes evt on the shared channel
func (b *RedisBridge) Forward(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes and dispatches remote events until ctx ends
func (b *RedisBridge) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return err
	}
	defer pubsub.Close()

	b.hub.SetBridge(b)
	defer b.hub.SetBridge(nil)
	logger.Infow("realtime_bridge_started", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warnw("realtime_bridge_decode_failed", "error", err)
				continue
			}
			b.hub.Dispatch(evt)
		}
	}
}

// Stop ends the subscription loop
func (b *RedisBridge) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
