package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/parcelpal/internal/constants"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestActorRolePermissions(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	cases := []struct {
		role   string
		object string
		action string
		allow  bool
	}{
		{constants.RoleSender, ObjectDelivery, constants.ActionVerifyItem, true},
		{constants.RoleSender, ObjectDelivery, constants.ActionView, true},
		{constants.RoleSender, ObjectChat, "send", true},
		{constants.RoleSender, ObjectDelivery, constants.ActionDeliver, false},
		{constants.RoleSender, ObjectDelivery, constants.ActionAccept, false},
		{constants.RolePartner, ObjectDelivery, constants.ActionDeliver, true},
		{constants.RolePartner, ObjectDelivery, constants.ActionComplete, false},
		{constants.RoleCandidate, ObjectDelivery, constants.ActionAccept, true},
		{constants.RoleCandidate, ObjectChat, "send", false},
	}
	for _, tc := range cases {
		allow, err := svc.Can(tc.role, tc.object, tc.action)
		if err != nil {
			t.Fatalf("enforce %s/%s/%s failed: %v", tc.role, tc.object, tc.action, err)
		}
		if allow != tc.allow {
			t.Fatalf("role=%s object=%s action=%s expected allow=%v", tc.role, tc.object, tc.action, tc.allow)
		}
	}
}

func TestBootstrapIsIdempotentAndRevokeApplies(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapActorRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if err := svc.Revoke(constants.RoleSender, ObjectDelivery, constants.ActionDispute); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	allow, err := svc.Can(constants.RoleSender, ObjectDelivery, constants.ActionDispute)
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if allow {
		t.Fatalf("revoked action should be denied")
	}
	policies, err := svc.Policies(constants.RolePartner)
	if err != nil {
		t.Fatalf("list policies failed: %v", err)
	}
	if len(policies) != 4 {
		t.Fatalf("expected 4 partner policies, got %+v", policies)
	}
}
