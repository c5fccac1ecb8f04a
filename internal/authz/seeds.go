package authz

import (
	"fmt"

	"github.com/parcelpal/internal/constants"
)

// RoleSeed built-in actor role
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

const roleParticipant = "participant"

// ActorRoleSeeds sender/partner/candidate permissions on a delivery
func ActorRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: roleParticipant,
			Policies: []Policy{
				{Object: ObjectDelivery, Action: constants.ActionView},
				{Object: ObjectChat, Action: "*"},
			},
		},
		{
			Role:     constants.RoleSender,
			Inherits: []string{roleParticipant},
			Policies: []Policy{
				{Object: ObjectDelivery, Action: constants.ActionCancel},
				{Object: ObjectDelivery, Action: constants.ActionVerifyItem},
				{Object: ObjectDelivery, Action: constants.ActionComplete},
				{Object: ObjectDelivery, Action: constants.ActionDispute},
				{Object: ObjectDelivery, Action: constants.ActionRate},
			},
		},
		{
			Role:     constants.RolePartner,
			Inherits: []string{roleParticipant},
			Policies: []Policy{
				{Object: ObjectDelivery, Action: constants.ActionCancel},
				{Object: ObjectDelivery, Action: constants.ActionUpload},
				{Object: ObjectDelivery, Action: constants.ActionInTransit},
				{Object: ObjectDelivery, Action: constants.ActionDeliver},
			},
		},
		{
			Role: constants.RoleCandidate,
			Policies: []Policy{
				{Object: ObjectDelivery, Action: constants.ActionView},
				{Object: ObjectDelivery, Action: constants.ActionAccept},
			},
		},
	}
}

// BootstrapActorRoles adds missing built-in rules; existing custom rules are kept
func (s *Service) BootstrapActorRoles() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	for _, seed := range ActorRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if _, err := s.enforcer.AddPolicy(role, normalize(policy.Object), normalize(policy.Action)); err != nil {
				return fmt.Errorf("add actor policy failed: %w", err)
			}
		}
	}
	return nil
}
