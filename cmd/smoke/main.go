package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/client/chat"
	"github.com/parcelpal/internal/client/lifecycle"
	"github.com/parcelpal/internal/client/session"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/logger"

	"github.com/shopspring/decimal"
)

// smoke drives one delivery from request to rating against a running api
func main() {
	cfg, err := client.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	apiURL := flag.String("api", cfg.APIURL, "api base url")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()
	cfg.APIURL = *apiURL

	logger.Init("debug", logger.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logger.Errorw("smoke_failed", "error", err)
		os.Exit(1)
	}
	logger.Infow("smoke_passed", "api", cfg.APIURL)
}

func run(ctx context.Context, cfg *client.Config) error {
	suffix := time.Now().UnixNano()
	sender, err := signUp(ctx, cfg, fmt.Sprintf("sender+%d@parcelpal.local", suffix), "Smoke Sender")
	if err != nil {
		return err
	}
	partner, err := signUp(ctx, cfg, fmt.Sprintf("partner+%d@parcelpal.local", suffix), "Smoke Partner")
	if err != nil {
		return err
	}
	senderID := sender.State().User.ID
	partnerID := partner.State().User.ID

	center := geo.Point{Lat: cfg.MapLat, Lng: cfg.MapLng}
	if _, err := partner.SetAvailability(ctx, true); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if _, err := partner.UpdateLocation(ctx, center.Lat, center.Lng, 25); err != nil {
		return fmt.Errorf("update location: %w", err)
	}

	senderView := lifecycle.NewSenderView(sender.API(), lifecycle.Options{})
	partnerView := lifecycle.NewPartnerView(partner.API(), geo.StaticSource{Point: center}, "Smoke Partner", "9123456789", lifecycle.Options{})

	created, err := senderView.Create(ctx, client.DeliveryForm{
		ItemName:    "Smoke test parcel",
		Phone:       "9876543210",
		Amount:      decimal.NewFromInt(120),
		TimeLimit:   60,
		Source:      &geo.Location{Lat: center.Lat + 0.002, Lng: center.Lng + 0.002},
		Destination: &geo.Location{Lat: center.Lat + 0.09, Lng: center.Lng - 0.1},
	})
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	logger.Infow("smoke_delivery_created", "delivery_id", created.ID, "distance_km", created.Distance)

	if err := partnerView.RefreshNearby(ctx); err != nil {
		return fmt.Errorf("nearby: %w", err)
	}
	if !containsDelivery(partnerView.Nearby(), created.ID) {
		return fmt.Errorf("delivery %d not in nearby list", created.ID)
	}
	if _, err := partnerView.Accept(ctx, created.ID); err != nil {
		return fmt.Errorf("accept: %w", err)
	}

	if err := negotiate(ctx, sender.API(), senderID, partner.API(), partnerID, created.ID); err != nil {
		return err
	}

	photo, err := samplePNG()
	if err != nil {
		return err
	}
	if _, err := partnerView.UploadItemPhoto(ctx, "item.png", photo); err != nil {
		return fmt.Errorf("upload item photo: %w", err)
	}
	if err := senderView.Refresh(ctx); err != nil {
		return err
	}
	if _, err := senderView.VerifyItem(ctx, true); err != nil {
		return fmt.Errorf("verify item: %w", err)
	}
	if err := partnerView.Refresh(ctx); err != nil {
		return err
	}
	if _, err := partnerView.MarkInTransit(ctx); err != nil {
		return fmt.Errorf("in transit: %w", err)
	}
	if _, err := partnerView.UploadDeliveryPhoto(ctx, "handover.png", photo); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	if err := senderView.Refresh(ctx); err != nil {
		return err
	}
	if _, err := senderView.Complete(ctx); err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	done := lifecycle.NewCompletionView(sender.API(), created.ID)
	if _, err := done.Load(ctx); err != nil {
		return err
	}
	if _, err := done.Rate(ctx, 5, "smoke run"); err != nil {
		return fmt.Errorf("rate: %w", err)
	}

	stats, err := partner.API().Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	logger.Infow("smoke_partner_stats",
		"completed", stats.CompletedAsPartner,
		"rating", stats.AverageRating,
		"reward_points", stats.RewardPoints,
	)

	if err := sender.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return partner.SignOut(ctx)
}

func signUp(ctx context.Context, cfg *client.Config, email, name string) (*session.Session, error) {
	s := session.New(client.FromConfig(cfg), &session.MemoryStore{})
	if err := s.SignUp(ctx, client.RegisterInput{
		Email:    email,
		Password: "smoke-secret-123",
		FullName: name,
		Phone:    "9876543210",
	}); err != nil {
		return nil, fmt.Errorf("sign up %s: %w", email, err)
	}
	if s.State().Profile == nil {
		return nil, fmt.Errorf("sign up %s: profile missing: %v", email, s.State().Err)
	}
	return s, nil
}

// negotiate agrees on 150 over chat: partner pins, sender confirms
func negotiate(ctx context.Context, senderAPI *client.API, senderID uint, partnerAPI *client.API, partnerID, deliveryID uint) error {
	senderChat := chat.New(senderAPI, senderID)
	defer senderChat.Close()
	partnerChat := chat.New(partnerAPI, partnerID)
	defer partnerChat.Close()

	if err := senderChat.Open(ctx, deliveryID); err != nil {
		return fmt.Errorf("open sender chat: %w", err)
	}
	if err := partnerChat.Open(ctx, deliveryID); err != nil {
		return fmt.Errorf("open partner chat: %w", err)
	}
	if _, err := senderChat.Send(ctx, "Hi, can you pick it up within the hour?"); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if _, err := partnerChat.Pin(ctx, decimal.NewFromInt(150)); err != nil {
		return fmt.Errorf("pin: %w", err)
	}
	confirmed, err := senderChat.Confirm(ctx)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	logger.Infow("smoke_amount_agreed", "chat_id", confirmed.ID, "amount", confirmed.AgreedAmount.String())
	return nil
}

func containsDelivery(list []client.NearbyDelivery, id uint) bool {
	for _, d := range list {
		if d.ID == id {
			return true
		}
	}
	return false
}

func samplePNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
