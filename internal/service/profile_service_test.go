package service

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateProfilePartialFields(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	user := f.registerUser(t, "asha@example.com", "Asha")

	phone := "98765-43210"
	updated, err := f.profiles.Update(ctx, user, UpdateProfileInput{Phone: &phone})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FullName != "Asha" || updated.Phone != phone {
		t.Fatalf("unexpected profile %+v", updated)
	}
	blank := "  "
	updated, err = f.profiles.Update(ctx, user, UpdateProfileInput{FullName: &blank})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FullName != "User" {
		t.Fatalf("blank name should fall back to User, got %q", updated.FullName)
	}
	bad := "123"
	if _, err := f.profiles.Update(ctx, user, UpdateProfileInput{Phone: &bad}); !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("bad phone should fail, got %v", err)
	}
}

func TestUpdateLocationValidates(t *testing.T) {
	f := setupServiceTest(t)
	user := f.registerUser(t, "asha@example.com", "")
	if _, err := f.profiles.UpdateLocation(context.Background(), user, 91, 0, 0); !errors.Is(err, ErrLocationInvalid) {
		t.Fatalf("latitude 91 should fail, got %v", err)
	}
	updated, err := f.profiles.UpdateLocation(context.Background(), user, 12.97, 77.59, 15)
	if err != nil {
		t.Fatalf("update location failed: %v", err)
	}
	if !updated.HasLocation() || *updated.CurrentLocationLat != 12.97 {
		t.Fatalf("location not stored: %+v", updated)
	}
}

func TestLookupAndStats(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	sender := f.registerUser(t, "sender@example.com", "Asha")
	partner := f.registerUser(t, "partner@example.com", "Ravi")

	d := f.driveToCompleted(t, sender, partner)
	if _, err := f.deliveries.Rate(ctx, sender, d.ID, 4, ""); err != nil {
		t.Fatalf("rate failed: %v", err)
	}

	summaries, err := f.profiles.Lookup([]uint{partner, partner, 0, 9999})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].FullName != "Ravi" || summaries[0].Rating != 4 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	stats, err := f.profiles.Stats(partner)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.CompletedAsPartner != 1 || stats.CompletedAsSender != 0 || stats.RatedCount != 1 || stats.AverageRating != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.Recent) != 1 || stats.Recent[0].ID != d.ID {
		t.Fatalf("recent should hold the completed delivery")
	}
}
