package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/parcelpal/internal/geocoding"

	"github.com/shopspring/decimal"
)

// DeliveryChat chat of a delivery; IsNotFound before it was accepted
func (a *API) DeliveryChat(ctx context.Context, deliveryID uint) (*Chat, error) {
	var c Chat
	if err := a.get(ctx, deliveryPath(deliveryID, "/chat"), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Chat one chat by id
func (a *API) Chat(ctx context.Context, chatID uint) (*Chat, error) {
	var c Chat
	if err := a.get(ctx, chatPath(chatID, ""), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Messages ascending by id; afterID > 0 returns only newer messages
func (a *API) Messages(ctx context.Context, chatID, afterID uint, limit int) ([]Message, error) {
	query := map[string]string{}
	if afterID > 0 {
		query["after_id"] = strconv.FormatUint(uint64(afterID), 10)
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	var list []Message
	if err := a.get(ctx, chatPath(chatID, "/messages"), query, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SendMessage appends a message
func (a *API) SendMessage(ctx context.Context, chatID uint, content string) (*Message, error) {
	var m Message
	if err := a.post(ctx, chatPath(chatID, "/messages"), map[string]string{"content": content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PinAmount proposes amount
func (a *API) PinAmount(ctx context.Context, chatID uint, amount decimal.Decimal) (*Chat, error) {
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	var c Chat
	if err := a.put(ctx, chatPath(chatID, "/pin"), map[string]decimal.Decimal{"amount": amount}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConfirmAmount accepts the counter-party's pin
func (a *API) ConfirmAmount(ctx context.Context, chatID uint) (*Chat, error) {
	var c Chat
	if err := a.put(ctx, chatPath(chatID, "/confirm"), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Rewards catalog, earn rules and history
func (a *API) Rewards(ctx context.Context) (*Rewards, error) {
	var r Rewards
	if err := a.get(ctx, "/rewards", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Redeem exchanges points for rewardID
func (a *API) Redeem(ctx context.Context, rewardID string) error {
	return a.post(ctx, "/rewards/redeem", map[string]string{"reward_id": rewardID}, nil)
}

// ReverseGeocode address for a coordinate
func (a *API) ReverseGeocode(ctx context.Context, lat, lng float64) (*geocoding.Address, error) {
	var addr geocoding.Address
	query := map[string]string{
		"lat": strconv.FormatFloat(lat, 'f', -1, 64),
		"lng": strconv.FormatFloat(lng, 'f', -1, 64),
	}
	if err := a.get(ctx, "/geocode/reverse", query, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// SearchGeocode places matching q
func (a *API) SearchGeocode(ctx context.Context, q string) ([]geocoding.Place, error) {
	var places []geocoding.Place
	if err := a.get(ctx, "/geocode/search", map[string]string{"q": q}, &places); err != nil {
		return nil, err
	}
	return places, nil
}

// MapConfig default center and tile layer
func (a *API) MapConfig(ctx context.Context) (*MapConfig, error) {
	var cfg MapConfig
	if _, err := a.call(ctx, request{method: http.MethodGet, path: "/config/map", public: true}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func chatPath(chatID uint, suffix string) string {
	return fmt.Sprintf("/chats/%d%s", chatID, suffix)
}
