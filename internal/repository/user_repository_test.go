package repository

import (
	"testing"

	"github.com/parcelpal/internal/models"
)

func TestUserRepositoryDuplicateAndPoints(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewUserRepository(db)

	if err := repo.Create(&models.User{ID: 1, FullName: "Asha", RewardPoints: 120}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	err := repo.Create(&models.User{ID: 1, FullName: "Again"})
	if !models.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	ok, err := repo.DeductRewardPoints(1, 100)
	if err != nil || !ok {
		t.Fatalf("deduct should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = repo.DeductRewardPoints(1, 100)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if ok {
		t.Fatalf("deduct beyond balance should not apply")
	}
	user, err := repo.GetByID(1)
	if err != nil || user == nil || user.RewardPoints != 20 {
		t.Fatalf("unexpected user after deduct: %+v err=%v", user, err)
	}
}

func TestRewardGrantIsIdempotent(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewRewardRepository(db)
	grant := func() bool {
		ok, err := repo.Grant(&models.PointGrant{UserID: 2, DeliveryID: 10, Kind: "delivery", Points: 10})
		if err != nil {
			t.Fatalf("grant failed: %v", err)
		}
		return ok
	}
	if !grant() {
		t.Fatalf("first grant should apply")
	}
	if grant() {
		t.Fatalf("second grant should be ignored")
	}
}
