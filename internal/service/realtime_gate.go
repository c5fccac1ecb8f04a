package service

import (
	"context"

	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"
)

// RealtimeGate authorizes websocket subscriptions and accepts partner positions
type RealtimeGate struct {
	deliveryRepo repository.DeliveryRepository
	chatRepo     repository.ChatRepository
	profiles     *ProfileService
}

// NewRealtimeGate creates the gate
func NewRealtimeGate(deliveryRepo repository.DeliveryRepository, chatRepo repository.ChatRepository, profiles *ProfileService) *RealtimeGate {
	return &RealtimeGate{
		deliveryRepo: deliveryRepo,
		chatRepo:     chatRepo,
		profiles:     profiles,
	}
}

var _ realtime.Gatekeeper = (*RealtimeGate)(nil)

// CanSubscribe participants only; the users topic only for its owner
func (g *RealtimeGate) CanSubscribe(ctx context.Context, userID uint, topic string) bool {
	kind, id, err := realtime.ParseTopic(topic)
	if err != nil || userID == 0 {
		return false
	}
	switch kind {
	case realtime.KindUsers:
		return id == userID
	case realtime.KindDeliveries, realtime.KindLocations:
		delivery, err := g.deliveryRepo.GetByID(id)
		if err != nil {
			logger.Warnw("realtime_gate_delivery_lookup_failed", "delivery_id", id, "error", err)
			return false
		}
		return delivery.IsParticipant(userID)
	case realtime.KindChats, realtime.KindMessages:
		chat, err := g.chatRepo.GetByID(id)
		if err != nil {
			logger.Warnw("realtime_gate_chat_lookup_failed", "chat_id", id, "error", err)
			return false
		}
		return chat.IsMember(userID)
	}
	return false
}

// OnLocation stores a position pushed over the socket
func (g *RealtimeGate) OnLocation(ctx context.Context, userID uint, update realtime.LocationUpdate) error {
	if update.DeliveryID != 0 {
		delivery, err := g.deliveryRepo.GetByID(update.DeliveryID)
		if err != nil {
			return err
		}
		if !delivery.IsPartner(userID) {
			return ErrForbidden
		}
	}
	_, err := g.profiles.UpdateLocation(ctx, userID, update.Lat, update.Lng, update.Accuracy)
	return err
}
