package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type PermissionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PermissionService
	params  ServiceParams

	root  *entity.Entity
	child *entity.Entity
	leaf  *entity.Entity
}

func TestPermissionService(t *testing.T) {
	suite.Run(t, new(PermissionServiceSuite))
}

func (s *PermissionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry())
	s.service = NewPermissionService(s.params)

	var err error
	s.root, err = s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Root Reseller", Tier: types.EntityTierM1})
	s.Require().NoError(err)
	s.child, err = s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Regional", Tier: types.EntityTierM2, ParentID: s.root.ID})
	s.Require().NoError(err)
	s.leaf, err = s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Shop", Tier: types.EntityTierM3, ParentID: s.child.ID})
	s.Require().NoError(err)
}

func (s *PermissionServiceSuite) allow(entityID, key string, scope types.PermissionScope, locked bool) {
	s.Require().NoError(s.service.ApplyDecision(s.GetContext(), &dto.SetPermissionRequest{
		EntityID: entityID,
		Key:      key,
		Scope:    scope,
		Allowed:  true,
		Locked:   locked,
	}))
}

func (s *PermissionServiceSuite) deny(entityID, key string, scope types.PermissionScope, locked bool) {
	s.Require().NoError(s.service.ApplyDecision(s.GetContext(), &dto.SetPermissionRequest{
		EntityID: entityID,
		Key:      key,
		Scope:    scope,
		Allowed:  false,
		Locked:   locked,
	}))
}

func (s *PermissionServiceSuite) evaluate(entityID, key string, scope types.PermissionScope) *dto.CheckPermissionResponse {
	resp, err := s.service.Evaluate(s.GetContext(), &dto.CheckPermissionRequest{EntityID: entityID, Key: key, Scope: scope})
	s.Require().NoError(err)
	return resp
}

func (s *PermissionServiceSuite) TestEntityHierarchyValidation() {
	// M1 roots cannot have parents and child tiers must nest one level
	// down.
	_, err := s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Bad Root", Tier: types.EntityTierM1, ParentID: s.root.ID})
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Orphan", Tier: types.EntityTierM3})
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateEntity(s.GetContext(), &dto.CreateEntityRequest{Name: "Skip Tier", Tier: types.EntityTierM3, ParentID: s.root.ID})
	s.True(ierr.IsValidation(err))

	s.Equal("/"+s.root.ID+"/", s.root.Path)
	s.Equal(s.root.Path+s.child.ID+"/", s.child.Path)
	s.Equal(2, s.leaf.Depth)
}

func (s *PermissionServiceSuite) TestNearestDefinedRowWins() {
	s.allow(s.root.ID, "catalog.publish", types.PermissionScopeGlobal, false)
	s.deny(s.child.ID, "catalog.publish", types.PermissionScopeGlobal, false)

	// The leaf inherits the nearest ancestor's decision.
	resp := s.evaluate(s.leaf.ID, "catalog.publish", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)
	s.Equal(s.child.ID, resp.DecidedBy)

	// The child's own row decides for the child.
	resp = s.evaluate(s.child.ID, "catalog.publish", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)

	// The root only has its own row.
	resp = s.evaluate(s.root.ID, "catalog.publish", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionAllowed, resp.Decision)
}

func (s *PermissionServiceSuite) TestLockedAncestorOverridesDescendants() {
	s.deny(s.root.ID, "orders.refund", types.PermissionScopeGlobal, true)

	// A pre-existing descendant row is shadowed by the lock.
	s.Require().NoError(s.GetStores().PermissionRepo.UpsertRow(s.GetContext(), &entity.PermissionRow{
		ID:        "perm_leaf_refund",
		EntityID:  s.leaf.ID,
		Key:       "orders.refund",
		Scope:     types.PermissionScopeGlobal,
		Allowed:   true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}))

	resp := s.evaluate(s.leaf.ID, "orders.refund", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)
	s.Equal(s.root.ID, resp.DecidedBy)
	s.True(resp.Locked)
}

func (s *PermissionServiceSuite) TestApplyDecisionUnderLockRefused() {
	s.deny(s.root.ID, "pricing.override", types.PermissionScopeGlobal, true)

	err := s.service.ApplyDecision(s.GetContext(), &dto.SetPermissionRequest{
		EntityID: s.leaf.ID,
		Key:      "pricing.override",
		Scope:    types.PermissionScopeGlobal,
		Allowed:  true,
	})
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrPermissionLocked))
}

func (s *PermissionServiceSuite) TestUnlockRestoresDescendantOverride() {
	s.deny(s.root.ID, "pricing.override", types.PermissionScopeGlobal, true)
	s.Require().NoError(s.service.Unlock(s.GetContext(), s.root.ID, "pricing.override", types.PermissionScopeGlobal))

	s.allow(s.leaf.ID, "pricing.override", types.PermissionScopeGlobal, false)

	resp := s.evaluate(s.leaf.ID, "pricing.override", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionAllowed, resp.Decision)
	s.Equal(s.leaf.ID, resp.DecidedBy)
}

func (s *PermissionServiceSuite) TestScopedRowBeatsGlobalRow() {
	s.deny(s.child.ID, "catalog.publish", types.PermissionScopeGlobal, false)
	s.allow(s.child.ID, "catalog.publish", types.PermissionScope("electronics"), false)

	resp := s.evaluate(s.child.ID, "catalog.publish", types.PermissionScope("electronics"))
	s.Equal(types.PermissionDecisionAllowed, resp.Decision)

	resp = s.evaluate(s.child.ID, "catalog.publish", types.PermissionScope("furniture"))
	s.Equal(types.PermissionDecisionDenied, resp.Decision)
}

func (s *PermissionServiceSuite) TestStrictModeDeniesUndefined() {
	resp := s.evaluate(s.leaf.ID, "never.decided", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)
	s.Empty(resp.DecidedBy)

	pending, err := s.service.ListPendingRequests(s.GetContext(), s.leaf.ID)
	s.NoError(err)
	s.Zero(pending.Total)
}

func (s *PermissionServiceSuite) TestTrainingModeQueuesUndefined() {
	s.params.Config.Permission.Mode = types.PermissionModeTraining
	s.params.Config.Permission.TrainingURL = "https://ops.example.com/permissions"

	resp, err := s.service.EvaluateForRequest(s.GetContext(), &dto.CheckPermissionRequest{
		EntityID: s.leaf.ID,
		Key:      "exports.bulk",
	}, "POST", "/v1/exports")
	s.NoError(err)
	s.Equal(types.PermissionDecisionPending, resp.Decision)
	s.Equal("https://ops.example.com/permissions", resp.TrainingURL)

	// Repeated evaluations keep one open request per (entity, key, scope).
	_, err = s.service.Evaluate(s.GetContext(), &dto.CheckPermissionRequest{EntityID: s.leaf.ID, Key: "exports.bulk"})
	s.NoError(err)

	pending, err := s.service.ListPendingRequests(s.GetContext(), s.leaf.ID)
	s.NoError(err)
	s.Equal(1, pending.Total)
	s.Equal("exports.bulk", pending.Items[0].Key)
	s.Equal("POST", pending.Items[0].Method)

	// An operator decision resolves the queue and answers future checks.
	s.allow(s.leaf.ID, "exports.bulk", types.PermissionScopeGlobal, false)

	pending, err = s.service.ListPendingRequests(s.GetContext(), s.leaf.ID)
	s.NoError(err)
	s.Zero(pending.Total)

	resp = s.evaluate(s.leaf.ID, "exports.bulk", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionAllowed, resp.Decision)
}

func (s *PermissionServiceSuite) TestApplyDecisionInvalidatesCache() {
	// The denial from the first evaluation is cached.
	resp := s.evaluate(s.leaf.ID, "catalog.publish", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)

	s.allow(s.leaf.ID, "catalog.publish", types.PermissionScopeGlobal, false)

	resp = s.evaluate(s.leaf.ID, "catalog.publish", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionAllowed, resp.Decision)
}

func (s *PermissionServiceSuite) TestInactiveEntityDenied() {
	s.leaf.IsActive = false
	s.Require().NoError(s.GetStores().EntityRepo.Update(s.GetContext(), s.leaf))

	resp := s.evaluate(s.leaf.ID, "anything", types.PermissionScopeGlobal)
	s.Equal(types.PermissionDecisionDenied, resp.Decision)
}

func (s *PermissionServiceSuite) TestResolveEntityOrder() {
	s.root.Domain = "shop.example.com"
	s.Require().NoError(s.GetStores().EntityRepo.Update(s.GetContext(), s.root))

	ent, err := s.service.ResolveEntity(s.GetContext(), s.leaf.ID, s.child.ID, "shop.example.com")
	s.NoError(err)
	s.Equal(s.leaf.ID, ent.ID)

	ent, err = s.service.ResolveEntity(s.GetContext(), "", s.child.ID, "shop.example.com")
	s.NoError(err)
	s.Equal(s.child.ID, ent.ID)

	ent, err = s.service.ResolveEntity(s.GetContext(), "", "", "shop.example.com")
	s.NoError(err)
	s.Equal(s.root.ID, ent.ID)
}
