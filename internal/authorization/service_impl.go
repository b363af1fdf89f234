package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/catalog/internal/credential"
	"github.com/smallbiznis/catalog/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const ObjectProduct = "product"

const (
	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer

	// serializes grouping rewrites so a subject is bound to one role per domain
	groupingMu sync.Mutex
}

// NewEnforcer builds an in-memory enforcer with the product policies seeded.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	cred, ok := credential.FromContext(ctx)
	if !ok {
		return credential.ErrInvalidCredential
	}
	if err := cred.Validate(); err != nil {
		return err
	}
	role := strings.ToLower(strings.TrimSpace(cred.Role))
	if role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	if object == "" || action == "" {
		return ErrInvalidAction
	}

	subject := cred.Subject()
	domain := fmt.Sprintf("company:%d", cred.CompanyID)
	if err := s.ensureGrouping(subject, "role:"+role, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Info("authorization denied",
			zap.String("object", object),
			zap.String("action", action),
			zap.String("role", role),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	s.groupingMu.Lock()
	defer s.groupingMu.Unlock()

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	allActions := []string{ActionProductView, ActionProductCreate, ActionProductUpdate, ActionProductDelete}

	var policies [][]string
	for _, role := range []string{RoleOwner, RoleAdmin, credential.RoleSystem} {
		for _, action := range allActions {
			policies = append(policies, []string{"role:" + role, ObjectProduct, action})
		}
	}
	policies = append(policies,
		[]string{"role:" + RoleMember, ObjectProduct, ActionProductView},
		[]string{"role:" + RoleMember, ObjectProduct, ActionProductCreate},
		[]string{"role:" + RoleMember, ObjectProduct, ActionProductUpdate},
		[]string{"role:" + RoleViewer, ObjectProduct, ActionProductView},
	)

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
