// Package authz decides which delivery actions an actor may take, backed by
// a casbin RBAC model persisted through the gorm adapter.
package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
)

// Policy objects
const (
	ObjectDelivery = "delivery"
	ObjectChat     = "chat"
)

// ErrUnavailable enforcer not initialized
var ErrUnavailable = errors.New("authz service unavailable")

const actorRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Policy one allow rule
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service casbin-backed actor policy
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService loads policies from db and seeds the built-in actor roles
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(actorRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}

	svc := &Service{enforcer: enforcer}
	if err := svc.BootstrapActorRoles(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Can reports whether role may perform action on object
func (s *Service) Can(role, object, action string) (bool, error) {
	if s == nil || s.enforcer == nil {
		return false, ErrUnavailable
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return false, err
	}
	return s.enforcer.Enforce(subject, normalize(object), normalize(action))
}

// Grant adds an allow rule for role
func (s *Service) Grant(role, object, action string) error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	if normalize(action) == "" {
		return fmt.Errorf("action is required")
	}
	if _, err := s.enforcer.AddPolicy(subject, normalize(object), normalize(action)); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// Revoke removes an allow rule from role
func (s *Service) Revoke(role, object, action string) error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.RemovePolicy(subject, normalize(object), normalize(action)); err != nil {
		return fmt.Errorf("revoke policy failed: %w", err)
	}
	return nil
}

// Policies rules granted directly to role, sorted
func (s *Service) Policies(role string) ([]Policy, error) {
	if s == nil || s.enforcer == nil {
		return nil, ErrUnavailable
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{Subject: rule[0], Object: rule[1], Action: rule[2]})
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Object == policies[j].Object {
			return policies[i].Action < policies[j].Action
		}
		return policies[i].Object < policies[j].Object
	})
	return policies, nil
}

// NormalizeRole adds the role: prefix
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	if normalized == "" {
		return "", fmt.Errorf("role is required")
	}
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	return normalized, nil
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
