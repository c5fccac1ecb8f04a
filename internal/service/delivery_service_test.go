package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/realtime"
)

func TestValidateCreateInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateDeliveryInput)
		want   error
	}{
		{"ok", func(*CreateDeliveryInput) {}, nil},
		{"empty item", func(in *CreateDeliveryInput) { in.ItemName = "  " }, ErrItemNameRequired},
		{"short phone", func(in *CreateDeliveryInput) { in.Phone = "12345" }, ErrPhoneInvalid},
		{"zero amount", func(in *CreateDeliveryInput) { in.Amount = models.NewMoneyFromFloat(0) }, ErrAmountInvalid},
		{"negative limit", func(in *CreateDeliveryInput) { in.TimeLimit = -5 }, ErrTimeLimitInvalid},
		{"missing source", func(in *CreateDeliveryInput) { in.Source = nil }, ErrLocationInvalid},
		{"bad destination", func(in *CreateDeliveryInput) { in.Destination = &geo.Location{Lat: 120, Lng: 10} }, ErrLocationInvalid},
	}
	for _, tc := range cases {
		input := validCreateInput()
		tc.mutate(&input)
		err := ValidateCreateInput(input)
		if tc.want == nil && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateDeliveryComputesDistanceAndDefaults(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "Asha")

	input := validCreateInput()
	input.TimeLimit = 0
	input.Source.Address = ""
	d, err := f.deliveries.Create(context.Background(), sender, input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if d.Status != constants.DeliveryStatusPending {
		t.Fatalf("expected pending, got %s", d.Status)
	}
	if d.TimeLimit != f.cfg.Delivery.DefaultTimeLimitMinutes {
		t.Fatalf("expected default time limit, got %d", d.TimeLimit)
	}
	if d.Phone != "9876543210" {
		t.Fatalf("phone should keep digits only, got %q", d.Phone)
	}
	if d.Distance <= 0 {
		t.Fatalf("distance should be positive, got %v", d.Distance)
	}
	if d.SourceAddress == "" {
		t.Fatalf("source address should fall back to coordinates")
	}
}

func TestAcceptCreatesChatAndRejectsSecondPartner(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "Asha")
	partner := f.registerUser(t, "partner@example.com", "Ravi")
	late := f.registerUser(t, "late@example.com", "Kiran")
	d := f.createDelivery(t, sender)

	if _, err := f.deliveries.Accept(ctx, sender, d.ID, AcceptInput{}); !errors.Is(err, ErrOwnDelivery) {
		t.Fatalf("sender accepting own delivery should fail, got %v", err)
	}

	result := f.acceptDelivery(t, partner, d.ID)
	if result.Delivery.Status != constants.DeliveryStatusAccepted {
		t.Fatalf("expected accepted, got %s", result.Delivery.Status)
	}
	if !result.Delivery.IsPartner(partner) {
		t.Fatalf("partner not assigned")
	}
	if result.Delivery.PartnerName != "Ravi" {
		t.Fatalf("partner name should come from the profile, got %q", result.Delivery.PartnerName)
	}
	if result.Chat == nil || result.Chat.ID == 0 || result.Chat.DeliveryID != d.ID {
		t.Fatalf("chat not created: %+v", result.Chat)
	}

	if _, err := f.deliveries.Accept(ctx, late, d.ID, AcceptInput{}); !errors.Is(err, ErrDeliveryTaken) {
		t.Fatalf("second accept should be taken, got %v", err)
	}
	var chats int64
	f.db.Model(&models.Chat{}).Where("delivery_id = ?", d.ID).Count(&chats)
	if chats != 1 {
		t.Fatalf("expected one chat, got %d", chats)
	}
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "Asha")
	d := f.createDelivery(t, sender)

	const partners = 8
	ids := make([]uint, partners)
	for i := range ids {
		ids[i] = f.registerUser(t, fmt.Sprintf("partner%d@example.com", i), fmt.Sprintf("Partner %d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, partners)
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			<-start
			_, errs[i] = f.deliveries.Accept(context.Background(), id, d.ID, AcceptInput{PartnerPhone: "9999999999"})
		}(i, id)
	}
	close(start)
	wg.Wait()

	var winner uint
	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			winner = ids[i]
		case errors.Is(err, ErrDeliveryTaken):
		default:
			t.Fatalf("accept %d failed with unexpected error: %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	got, err := f.deliveries.Get(context.Background(), sender, d.ID)
	if err != nil {
		t.Fatalf("get delivery failed: %v", err)
	}
	if got.Status != constants.DeliveryStatusAccepted || !got.IsPartner(winner) {
		t.Fatalf("delivery should belong to the winner %d, got %+v", winner, got)
	}
	var chats int64
	f.db.Model(&models.Chat{}).Where("delivery_id = ?", d.ID).Count(&chats)
	if chats != 1 {
		t.Fatalf("expected one chat, got %d", chats)
	}
}

func TestRepeatedGetReturnsIdenticalDelivery(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "Asha")
	partner := f.registerUser(t, "partner@example.com", "Ravi")
	d := f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, d.ID)

	for _, viewer := range []uint{sender, partner} {
		first, err := f.deliveries.Get(ctx, viewer, d.ID)
		if err != nil {
			t.Fatalf("first get failed: %v", err)
		}
		second, err := f.deliveries.Get(ctx, viewer, d.ID)
		if err != nil {
			t.Fatalf("second get failed: %v", err)
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Fatalf("repeated reads differ for user %d:\n%s\n%s", viewer, a, b)
		}
	}
}

func TestStrangerCannotViewAcceptedDelivery(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	stranger := f.registerUser(t, "stranger@example.com", "")
	d := f.createDelivery(t, sender)

	if _, err := f.deliveries.Get(ctx, stranger, d.ID); err != nil {
		t.Fatalf("pending delivery should be visible to candidates: %v", err)
	}
	f.acceptDelivery(t, partner, d.ID)
	if _, err := f.deliveries.Get(ctx, stranger, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("accepted delivery should be hidden, got %v", err)
	}
	if _, err := f.deliveries.Get(ctx, partner, d.ID); err != nil {
		t.Fatalf("partner should see the delivery: %v", err)
	}
}

func TestCancelRequiresEmergencyAfterPickup(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	d := f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, d.ID)

	if _, err := f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeItem, "/uploads/x.jpg"); err != nil {
		t.Fatalf("attach item photo failed: %v", err)
	}
	if _, err := f.deliveries.VerifyItem(ctx, sender, d.ID, true); err != nil {
		t.Fatalf("verify item failed: %v", err)
	}

	if _, err := f.deliveries.Cancel(ctx, partner, d.ID, CancelInput{}); !errors.Is(err, ErrEmergencyRequired) {
		t.Fatalf("plain cancel after pickup should fail, got %v", err)
	}
	cancelled, err := f.deliveries.Cancel(ctx, partner, d.ID, CancelInput{Emergency: true})
	if err != nil {
		t.Fatalf("emergency cancel failed: %v", err)
	}
	if cancelled.Status != constants.DeliveryStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledBy != constants.CancelledByPartner {
		t.Fatalf("cancelled_by should follow the actor, got %s", cancelled.CancelledBy)
	}
	if cancelled.CancelReason != constants.CancelReasonPartnerEmergency {
		t.Fatalf("unexpected default reason %q", cancelled.CancelReason)
	}
	if _, err := f.deliveries.Cancel(ctx, sender, d.ID, CancelInput{Emergency: true}); !errors.Is(err, ErrCancelNotAllowed) {
		t.Fatalf("cancelled delivery should stay terminal, got %v", err)
	}
}

func TestSenderCancelsPendingDelivery(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "")
	d := f.createDelivery(t, sender)

	cancelled, err := f.deliveries.Cancel(context.Background(), sender, d.ID, CancelInput{Reason: "changed my mind"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.CancelledBy != constants.CancelledBySender || cancelled.CancelReason != "changed my mind" {
		t.Fatalf("unexpected cancellation %+v", cancelled)
	}
}

func TestVerifyItemRejectClearsPhoto(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	d := f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, d.ID)

	if _, err := f.deliveries.VerifyItem(ctx, sender, d.ID, true); !errors.Is(err, ErrItemPhotoMissing) {
		t.Fatalf("verify without photo should fail, got %v", err)
	}
	if _, err := f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeItem, "/uploads/x.jpg"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	rejected, err := f.deliveries.VerifyItem(ctx, sender, d.ID, false)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.DeliveryStatusAccepted || rejected.ItemPhotoURL != "" {
		t.Fatalf("reject should keep accepted and clear the photo: %+v", rejected)
	}
}

func TestDeliverRequiresPhotoAndPartner(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	d := f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, d.ID)
	if _, err := f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeDelivery, "/uploads/x.jpg"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delivery photo before pickup should fail, got %v", err)
	}
	if _, err := f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeItem, "/uploads/x.jpg"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := f.deliveries.VerifyItem(ctx, sender, d.ID, true); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := f.deliveries.Deliver(ctx, partner, d.ID); !errors.Is(err, ErrDeliveryPhotoMissing) {
		t.Fatalf("deliver without photo should fail, got %v", err)
	}
	if _, err := f.deliveries.Deliver(ctx, sender, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("sender cannot deliver, got %v", err)
	}
	if _, err := f.deliveries.AttachPhoto(ctx, partner, d.ID, "selfie", "/uploads/x.jpg"); !errors.Is(err, ErrPhotoTypeInvalid) {
		t.Fatalf("unknown photo type should fail, got %v", err)
	}
}

func TestHappyPathCompletesAndAppliesRewards(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")

	d := f.driveToCompleted(t, sender, partner)
	if d.Status != constants.DeliveryStatusCompleted || d.CompletedAt == nil {
		t.Fatalf("expected completed, got %+v", d)
	}

	partnerProfile, err := f.profiles.Get(partner)
	if err != nil {
		t.Fatalf("get partner failed: %v", err)
	}
	// per delivery plus the on-time bonus
	want := f.cfg.Rewards.PerDelivery + f.cfg.Rewards.OnTimeBonus
	if partnerProfile.RewardPoints != want {
		t.Fatalf("expected %d points, got %d", want, partnerProfile.RewardPoints)
	}
	if partnerProfile.TotalDeliveries != 1 {
		t.Fatalf("expected partner counter 1, got %d", partnerProfile.TotalDeliveries)
	}
	senderProfile, _ := f.profiles.Get(sender)
	if senderProfile.TotalRequests != 1 {
		t.Fatalf("expected sender counter 1, got %d", senderProfile.TotalRequests)
	}

	if err := f.rewards.ApplyCompletion(context.Background(), d.ID); err != nil {
		t.Fatalf("reapply failed: %v", err)
	}
	again, _ := f.profiles.Get(partner)
	if again.RewardPoints != want || again.TotalDeliveries != 1 {
		t.Fatalf("rewards applied twice: points=%d deliveries=%d", again.RewardPoints, again.TotalDeliveries)
	}
}

func TestRateOnceAfterCompletion(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")

	pending := f.createDelivery(t, sender)
	if _, err := f.deliveries.Rate(ctx, sender, pending.ID, 4, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("rating before completion should fail, got %v", err)
	}

	d := f.driveToCompleted(t, sender, partner)
	if _, err := f.deliveries.Rate(ctx, sender, d.ID, 6, ""); !errors.Is(err, ErrRatingInvalid) {
		t.Fatalf("rating 6 should fail, got %v", err)
	}
	if _, err := f.deliveries.Rate(ctx, partner, d.ID, 5, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("partner cannot rate, got %v", err)
	}
	rated, err := f.deliveries.Rate(ctx, sender, d.ID, 5, "quick")
	if err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 5 {
		t.Fatalf("rating not stored: %+v", rated.Rating)
	}
	if _, err := f.deliveries.Rate(ctx, sender, d.ID, 3, ""); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("second rating should fail, got %v", err)
	}

	profile, _ := f.profiles.Get(partner)
	if profile.Rating != 5 {
		t.Fatalf("expected partner rating 5, got %v", profile.Rating)
	}
	want := f.cfg.Rewards.PerDelivery + f.cfg.Rewards.OnTimeBonus + f.cfg.Rewards.FiveStarBonus
	if profile.RewardPoints != want {
		t.Fatalf("expected %d points, got %d", want, profile.RewardPoints)
	}
}

func TestDisputeFromDelivered(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	d := f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, d.ID)

	if _, err := f.deliveries.Dispute(ctx, sender, d.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("dispute before delivery should fail, got %v", err)
	}
	f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeItem, "/uploads/a.jpg")
	f.deliveries.VerifyItem(ctx, sender, d.ID, true)
	f.deliveries.AttachPhoto(ctx, partner, d.ID, constants.PhotoTypeDelivery, "/uploads/b.jpg")
	if _, err := f.deliveries.Deliver(ctx, partner, d.ID); err != nil {
		t.Fatalf("deliver from picked_up failed: %v", err)
	}
	disputed, err := f.deliveries.Dispute(ctx, sender, d.ID)
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if disputed.Status != constants.DeliveryStatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.Status)
	}
	if _, err := f.deliveries.Complete(ctx, sender, d.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("disputed delivery cannot complete, got %v", err)
	}
}

func TestNearbyFiltersOwnAndFarRequests(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")

	near := f.createDelivery(t, sender)
	far := validCreateInput()
	far.Source = &geo.Location{Lat: 19.0760, Lng: 72.8777, Address: "Mumbai"}
	if _, err := f.deliveries.Create(ctx, sender, far); err != nil {
		t.Fatalf("create far failed: %v", err)
	}
	own := validCreateInput()
	if _, err := f.deliveries.Create(ctx, partner, own); err != nil {
		t.Fatalf("create own failed: %v", err)
	}

	items, err := f.deliveries.Nearby(partner, 28.6200, 77.2100, 5)
	if err != nil {
		t.Fatalf("nearby failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != near.ID {
		t.Fatalf("expected only the nearby request, got %+v", items)
	}
	if items[0].DistanceKM <= 0 || items[0].DistanceKM > 5 {
		t.Fatalf("unexpected distance %v", items[0].DistanceKM)
	}
	if _, err := f.deliveries.Nearby(partner, 200, 0, 5); !errors.Is(err, ErrLocationInvalid) {
		t.Fatalf("invalid origin should fail, got %v", err)
	}
}

func TestListByRoleAndActive(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	first := f.createDelivery(t, sender)
	f.createDelivery(t, sender)
	f.acceptDelivery(t, partner, first.ID)

	sent, total, err := f.deliveries.List(sender, ListDeliveriesInput{Role: "sender", Page: 1, PageSize: 20})
	if err != nil || total != 2 || len(sent) != 2 {
		t.Fatalf("sender list: total=%d len=%d err=%v", total, len(sent), err)
	}
	carried, total, err := f.deliveries.List(partner, ListDeliveriesInput{Role: "delivery_partner", ActiveOnly: true, Page: 1, PageSize: 20})
	if err != nil || total != 1 || carried[0].ID != first.ID {
		t.Fatalf("partner list: total=%d err=%v", total, err)
	}
}

func TestExpireStaleCancelsOldPending(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "")
	old := f.createDelivery(t, sender)
	fresh := f.createDelivery(t, sender)
	if err := f.db.Model(&models.Delivery{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	expired, err := f.deliveries.ExpireStale(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	got, _ := f.deliveries.Get(context.Background(), sender, old.ID)
	if got.Status != constants.DeliveryStatusCancelled || got.CancelledBy != constants.CancelledBySystem {
		t.Fatalf("old request should be cancelled by system: %+v", got)
	}
	still, _ := f.deliveries.Get(context.Background(), sender, fresh.ID)
	if still.Status != constants.DeliveryStatusPending {
		t.Fatalf("fresh request should stay pending, got %s", still.Status)
	}
}

func TestNotifyNearbyPartners(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	away := f.registerUser(t, "away@example.com", "")

	if _, err := f.profiles.SetAvailability(partner, true); err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if _, err := f.profiles.UpdateLocation(ctx, partner, 28.6150, 77.2100, 10); err != nil {
		t.Fatalf("location failed: %v", err)
	}
	f.profiles.SetAvailability(away, true)
	f.profiles.UpdateLocation(ctx, away, 19.0760, 72.8777, 10)

	sub := f.hub.Subscribe(realtime.UserTopic(partner))
	defer sub.Close()

	d := f.createDelivery(t, sender)
	notified, err := f.deliveries.NotifyNearbyPartners(ctx, d.ID)
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if notified != 1 {
		t.Fatalf("expected one partner notified, got %d", notified)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-sub.C():
			if evt.Type == realtime.TypeNotification {
				return
			}
		case <-deadline:
			t.Fatalf("partner did not receive a notification")
		}
	}
}

func TestMapFallsBackToProfileLocation(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "")
	partner := f.registerUser(t, "partner@example.com", "")
	d := f.createDelivery(t, sender)

	view, err := f.deliveries.Map(ctx, sender, d.ID)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if partnerMarker(view) != nil {
		t.Fatalf("pending delivery has no partner marker")
	}
	f.acceptDelivery(t, partner, d.ID)
	if _, err := f.profiles.UpdateLocation(ctx, partner, 28.60, 77.25, 5); err != nil {
		t.Fatalf("update location failed: %v", err)
	}
	view, err = f.deliveries.Map(ctx, sender, d.ID)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	marker := partnerMarker(view)
	if marker == nil || marker.Location.Lat != 28.60 {
		t.Fatalf("partner marker missing: %+v", view.Markers)
	}
}

func partnerMarker(view *geo.MapView) *geo.Marker {
	for i := range view.Markers {
		if view.Markers[i].Kind == geo.MarkerPartner {
			return &view.Markers[i]
		}
	}
	return nil
}
