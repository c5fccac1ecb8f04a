package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:delivery_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func seedPendingDelivery(t *testing.T, repo *GormDeliveryRepository, senderID uint, lat, lng float64) *models.Delivery {
	t.Helper()
	d := &models.Delivery{
		SenderID:       senderID,
		ItemName:       "Documents",
		Phone:          "9876543210",
		DeliveryAmount: models.NewMoneyFromFloat(120),
		TimeLimit:      60,
		SourceLat:      lat,
		SourceLng:      lng,
		DestinationLat: lat + 0.05,
		DestinationLng: lng + 0.05,
		Status:         constants.DeliveryStatusPending,
	}
	if err := repo.Create(d); err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}
	return d
}

func TestAssignOnlyOnce(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	d := seedPendingDelivery(t, repo, 1, 28.6139, 77.2090)

	ok, err := repo.Assign(d.ID, 2, "Partner A", "9999999999", time.Now())
	if err != nil || !ok {
		t.Fatalf("first assign should win, ok=%v err=%v", ok, err)
	}
	ok, err = repo.Assign(d.ID, 3, "Partner B", "8888888888", time.Now())
	if err != nil {
		t.Fatalf("second assign failed: %v", err)
	}
	if ok {
		t.Fatalf("second assign should lose")
	}

	got, err := repo.GetByID(d.ID)
	if err != nil || got == nil {
		t.Fatalf("get delivery failed: %v", err)
	}
	if got.Status != constants.DeliveryStatusAccepted || got.DeliveryPartnerID == nil || *got.DeliveryPartnerID != 2 {
		t.Fatalf("unexpected delivery after assign: %+v", got)
	}
}

func TestTransitionStatusRequiresExpectedStatus(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	d := seedPendingDelivery(t, repo, 1, 28.6, 77.2)

	ok, err := repo.TransitionStatus(d.ID, []string{constants.DeliveryStatusDelivered}, constants.DeliveryStatusCompleted, nil)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if ok {
		t.Fatalf("transition from wrong status should not apply")
	}
	ok, err = repo.TransitionStatus(d.ID, []string{constants.DeliveryStatusPending}, constants.DeliveryStatusCancelled, map[string]interface{}{
		"cancel_reason": constants.CancelReasonSender,
	})
	if err != nil || !ok {
		t.Fatalf("transition from pending should apply, ok=%v err=%v", ok, err)
	}
}

func TestListPendingUnassignedNearBoundingBox(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	near := seedPendingDelivery(t, repo, 1, 28.6200, 77.2100)
	seedPendingDelivery(t, repo, 1, 19.0760, 72.8777) // Mumbai
	own := seedPendingDelivery(t, repo, 5, 28.6150, 77.2095)
	taken := seedPendingDelivery(t, repo, 1, 28.6140, 77.2091)
	if ok, err := repo.Assign(taken.ID, 9, "", "", time.Now()); err != nil || !ok {
		t.Fatalf("assign failed: %v", err)
	}

	items, err := repo.ListPendingUnassignedNear(NearbyFilter{Lat: 28.6139, Lng: 77.2090, RadiusKM: 10, ExcludeID: 5})
	if err != nil {
		t.Fatalf("list nearby failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != near.ID {
		t.Fatalf("expected only the near delivery, got %+v (own=%d)", items, own.ID)
	}
}

func TestListPendingUnassignedNearAcrossAntimeridian(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	east := seedPendingDelivery(t, repo, 1, -17.0, -179.98)
	west := seedPendingDelivery(t, repo, 1, -17.0, 179.95)
	seedPendingDelivery(t, repo, 1, -17.0, 178.0)

	items, err := repo.ListPendingUnassignedNear(NearbyFilter{Lat: -17.0, Lng: 179.98, RadiusKM: 10})
	if err != nil {
		t.Fatalf("list nearby failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both deliveries around the antimeridian, got %+v", items)
	}
	if items[0].ID != west.ID || items[1].ID != east.ID {
		t.Fatalf("expected nearest first (west=%d east=%d), got %d then %d", west.ID, east.ID, items[0].ID, items[1].ID)
	}

	items, err = repo.ListPendingUnassignedNear(NearbyFilter{Lat: -17.0, Lng: -179.98, RadiusKM: 10})
	if err != nil {
		t.Fatalf("list nearby failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != east.ID {
		t.Fatalf("expected the east delivery first from the other side, got %+v", items)
	}
}

func TestListPendingUnassignedNearLimitKeepsClosest(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	closest := seedPendingDelivery(t, repo, 1, 28.6140, 77.2091)
	if err := db.Model(&models.Delivery{}).Where("id = ?", closest.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		seedPendingDelivery(t, repo, 1, 28.6500+float64(i)*0.01, 77.2500)
	}

	items, err := repo.ListPendingUnassignedNear(NearbyFilter{Lat: 28.6139, Lng: 77.2090, RadiusKM: 10, Limit: 1})
	if err != nil {
		t.Fatalf("list nearby failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != closest.ID {
		t.Fatalf("capped candidates should keep the closest delivery %d, got %+v", closest.ID, items)
	}
}

func TestPartnerRatingStats(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	for _, rating := range []int{5, 4} {
		d := seedPendingDelivery(t, repo, 1, 28.6, 77.2)
		r := rating
		if err := repo.UpdateFields(d.ID, map[string]interface{}{"delivery_partner_id": 7, "rating": r}); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	avg, count, err := repo.PartnerRatingStats(7)
	if err != nil {
		t.Fatalf("rating stats failed: %v", err)
	}
	if count != 2 || avg != 4.5 {
		t.Fatalf("unexpected stats avg=%v count=%d", avg, count)
	}
}

func TestListKeywordSearch(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	first := seedPendingDelivery(t, repo, 1, 28.6139, 77.2090)
	second := seedPendingDelivery(t, repo, 1, 28.6139, 77.2090)
	if err := repo.UpdateFields(second.ID, map[string]interface{}{"item_name": "Birthday Cake", "destination_address": "Pitampura"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	list, total, err := repo.List(DeliveryListFilter{SenderID: 1, Keyword: "cake", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("keyword should match only the cake, total=%d list=%v", total, list)
	}

	list, _, err = repo.List(DeliveryListFilter{SenderID: 1, Keyword: "pitam", Page: 1, PageSize: 20})
	if err != nil || len(list) != 1 {
		t.Fatalf("address match failed: %v %v", list, err)
	}

	list, _, err = repo.List(DeliveryListFilter{SenderID: 1, Keyword: "%", Page: 1, PageSize: 20})
	if err != nil || len(list) != 0 {
		t.Fatalf("wildcards are matched literally, got %d rows err=%v", len(list), err)
	}

	list, total, _ = repo.List(DeliveryListFilter{SenderID: 1, Keyword: "  ", Page: 1, PageSize: 20})
	if total != 2 || len(list) != 2 || list[1].ID != first.ID {
		t.Fatalf("blank keyword lists everything, total=%d", total)
	}
}
