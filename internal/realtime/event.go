// Package realtime is the single push channel: topic subscriptions for
// delivery status, chat rows, messages and partner locations, carried over
// one websocket per client and optionally bridged across instances via redis.
package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event types
const (
	TypeDeliveryCreated = "delivery.created"
	TypeDeliveryUpdated = "delivery.updated"
	TypeChatCreated     = "chat.created"
	TypeChatUpdated     = "chat.updated"
	TypeMessageCreated  = "message.created"
	TypeLocationUpdated = "location.updated"
	TypeTyping          = "typing"
	TypeNotification    = "notification"
	TypeSubscribed      = "subscribed"
	TypeUnsubscribed    = "unsubscribed"
	TypeError           = "error"
	TypePong            = "pong"
)

// Topic kinds
const (
	KindDeliveries = "deliveries"
	KindChats      = "chats"
	KindMessages   = "messages"
	KindLocations  = "locations"
	KindUsers      = "users"
)

// Event envelope pushed to subscribers
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event
func NewEvent(eventType, topic string, data interface{}) (Event, error) {
	evt := Event{Type: eventType, Topic: topic, Timestamp: time.Now().UTC()}
	if data == nil {
		return evt, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event data failed: %w", err)
	}
	evt.Data = raw
	return evt, nil
}

// Decode unmarshals the payload
func (e Event) Decode(dest interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Type)
	}
	return json.Unmarshal(e.Data, dest)
}

// DeliveryTopic status changes of one delivery
func DeliveryTopic(id uint) string { return topic(KindDeliveries, id) }

// ChatTopic pin/confirm changes of one chat
func ChatTopic(id uint) string { return topic(KindChats, id) }

// MessagesTopic appended messages of one chat
func MessagesTopic(chatID uint) string { return topic(KindMessages, chatID) }

// LocationTopic partner positions for one delivery
func LocationTopic(deliveryID uint) string { return topic(KindLocations, deliveryID) }

// UserTopic notifications for one user
func UserTopic(id uint) string { return topic(KindUsers, id) }

func topic(kind string, id uint) string {
	return kind + ":" + strconv.FormatUint(uint64(id), 10)
}

// ParseTopic splits "kind:id"
func ParseTopic(t string) (string, uint, error) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(t), ":")
	if !ok || kind == "" {
		return "", 0, fmt.Errorf("invalid topic %q", t)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return "", 0, fmt.Errorf("invalid topic id %q", t)
	}
	switch kind {
	case KindDeliveries, KindChats, KindMessages, KindLocations, KindUsers:
	default:
		return "", 0, fmt.Errorf("unknown topic kind %q", kind)
	}
	return kind, uint(id), nil
}

// LocationUpdate partner position frame
type LocationUpdate struct {
	DeliveryID uint      `json:"delivery_id"`
	UserID     uint      `json:"user_id,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	// filled by the server
	DistanceToDestinationKM float64 `json:"distance_to_destination_km,omitempty"`
	ETAMinutes              int     `json:"eta_minutes,omitempty"`
}

// Typing indicator frame
type Typing struct {
	ChatID uint `json:"chat_id"`
	UserID uint `json:"user_id,omitempty"`
	Active bool `json:"active"`
}
