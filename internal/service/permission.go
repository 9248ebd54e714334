package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stackbill/stackbill/internal/cache"
	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// permissionCacheTTL bounds how long a resolved decision can lag a matrix
// edit on another node.
const permissionCacheTTL = 5 * time.Minute

// PermissionService is the hierarchical permission gate. Every decision is
// resolved against the entity's ancestor chain: a locked ancestor row wins
// over anything deeper, otherwise the nearest defined row wins, and scoped
// rows beat global rows on the same entity.
type PermissionService interface {
	// Evaluate resolves one (entity, key, scope). Undefined keys are denied
	// in strict mode; in training mode they are queued for an operator and
	// come back pending.
	Evaluate(ctx context.Context, req *dto.CheckPermissionRequest) (*dto.CheckPermissionResponse, error)

	// EvaluateForRequest is Evaluate plus request context captured for the
	// training queue.
	EvaluateForRequest(ctx context.Context, req *dto.CheckPermissionRequest, method, route string) (*dto.CheckPermissionResponse, error)

	// ApplyDecision records a decision on an entity's matrix and resolves
	// any pending training requests for the same key.
	ApplyDecision(ctx context.Context, req *dto.SetPermissionRequest) error

	// Unlock clears the lock on a row, letting descendants override again.
	Unlock(ctx context.Context, entityID, key string, scope types.PermissionScope) error

	CreateEntity(ctx context.Context, req *dto.CreateEntityRequest) (*entity.Entity, error)
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)

	// ResolveEntity finds the acting entity for a request, trying each
	// source in a fixed order: explicit ID, the X-Entity-ID header value,
	// the request's host domain, then the workspace in context.
	ResolveEntity(ctx context.Context, explicitID, headerID, domain string) (*entity.Entity, error)

	ListPendingRequests(ctx context.Context, entityID string) (*dto.ListPermissionRequestsResponse, error)
}

type permissionService struct {
	ServiceParams
}

func NewPermissionService(params ServiceParams) PermissionService {
	return &permissionService{ServiceParams: params}
}

func (s *permissionService) Evaluate(ctx context.Context, req *dto.CheckPermissionRequest) (*dto.CheckPermissionResponse, error) {
	return s.EvaluateForRequest(ctx, req, "", "")
}

func (s *permissionService) EvaluateForRequest(ctx context.Context, req *dto.CheckPermissionRequest, method, route string) (*dto.CheckPermissionResponse, error) {
	cacheKey := fmt.Sprintf("%s%s:%s:%s", cache.PrefixPermission, req.EntityID, req.Key, req.Scope)
	if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
		if resp, ok := cached.(*dto.CheckPermissionResponse); ok {
			return resp, nil
		}
	}

	ent, err := s.EntityRepo.Get(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	if !ent.IsActive {
		return &dto.CheckPermissionResponse{Decision: types.PermissionDecisionDenied}, nil
	}

	chainIDs := ent.ChainIDs()
	rows, err := s.PermissionRepo.ListRowsForChain(ctx, chainIDs, req.Key)
	if err != nil {
		return nil, err
	}

	resolution := entity.ResolveDecision(chainIDs, rows, req.Key, req.Scope)

	resp := &dto.CheckPermissionResponse{Decision: resolution.Decision}
	if resolution.Row != nil {
		resp.DecidedBy = resolution.Row.EntityID
		resp.Locked = resolution.Row.Locked
	}

	if resolution.Decision == types.PermissionDecisionUndefined {
		if s.Config.Permission.Mode == types.PermissionModeTraining {
			resp.Decision = types.PermissionDecisionPending
			resp.TrainingURL = s.Config.Permission.TrainingURL
			if err := s.queueTrainingRequest(ctx, ent, req, method, route); err != nil {
				s.Logger.Errorw("failed to queue permission request", "entity_id", ent.ID, "key", req.Key, "error", err)
			}
			// Pending decisions are never cached: the operator may decide
			// at any moment and the caller is expected to retry.
			return resp, nil
		}
		resp.Decision = types.PermissionDecisionDenied
	}

	s.Cache.Set(ctx, cacheKey, resp, permissionCacheTTL)
	return resp, nil
}

func (s *permissionService) queueTrainingRequest(ctx context.Context, ent *entity.Entity, req *dto.CheckPermissionRequest, method, route string) error {
	// One open request per (entity, key, scope) is enough.
	pending, err := s.PermissionReqRepo.ListPending(ctx, ent.ID)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.Key == req.Key && p.Scope == req.Scope {
			return nil
		}
	}

	return s.PermissionReqRepo.Create(ctx, &entity.PermissionRequest{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PERMISSION_REQUEST),
		EntityID:  ent.ID,
		Key:       req.Key,
		Scope:     req.Scope,
		Method:    method,
		Route:     route,
		BaseModel: types.GetDefaultBaseModel(ctx),
	})
}

func (s *permissionService) ApplyDecision(ctx context.Context, req *dto.SetPermissionRequest) error {
	// Writing under a locked ancestor decision is refused outright, not
	// silently shadowed.
	ent, err := s.EntityRepo.Get(ctx, req.EntityID)
	if err != nil {
		return err
	}
	chainIDs := ent.ChainIDs()
	rows, err := s.PermissionRepo.ListRowsForChain(ctx, chainIDs, req.Key)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.EntityID == req.EntityID || !row.Locked {
			continue
		}
		if row.Scope == req.Scope || row.Scope == types.PermissionScopeGlobal {
			return ierr.NewError("decision locked by ancestor").
				WithHintf("Entity %s has locked this decision", row.EntityID).
				WithReportableDetails(map[string]any{
					"locked_by": row.EntityID,
					"key":       req.Key,
				}).
				Mark(ierr.ErrPermissionLocked)
		}
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PermissionRepo.UpsertRow(ctx, &entity.PermissionRow{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PERMISSION),
			EntityID:    req.EntityID,
			Key:         req.Key,
			Scope:       req.Scope,
			Allowed:     req.Allowed,
			Locked:      req.Locked,
			Source:      "operator",
			SetByEntity: types.GetEntityID(ctx),
			BaseModel:   types.GetDefaultBaseModel(ctx),
		}); err != nil {
			return err
		}

		// Close out any training requests this decision answers.
		pending, err := s.PermissionReqRepo.ListPending(ctx, req.EntityID)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.Key == req.Key && p.Scope == req.Scope {
				if err := s.PermissionReqRepo.MarkResolved(ctx, p.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// A matrix edit on any entity can change resolution for the whole
	// subtree, so the cache is dropped wholesale.
	s.Cache.DeleteByPrefix(ctx, cache.PrefixPermission)

	s.Logger.Infow("permission decision recorded",
		"entity_id", req.EntityID,
		"key", req.Key,
		"scope", req.Scope,
		"allowed", req.Allowed,
		"locked", req.Locked,
	)
	return nil
}

func (s *permissionService) Unlock(ctx context.Context, entityID, key string, scope types.PermissionScope) error {
	if err := s.PermissionRepo.Unlock(ctx, entityID, key, scope); err != nil {
		return err
	}
	s.Cache.DeleteByPrefix(ctx, cache.PrefixPermission)
	return nil
}

func (s *permissionService) CreateEntity(ctx context.Context, req *dto.CreateEntityRequest) (*entity.Entity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var parent *entity.Entity
	if req.ParentID != "" {
		var err error
		parent, err = s.EntityRepo.Get(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		if err := validateTierNesting(parent.Tier, req.Tier); err != nil {
			return nil, err
		}
	}

	id := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITY)
	ent := &entity.Entity{
		ID:        id,
		Name:      req.Name,
		Tier:      req.Tier,
		ParentID:  req.ParentID,
		Path:      entity.BuildPath(parent, id),
		Domain:    req.Domain,
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if parent != nil {
		ent.Depth = parent.Depth + 1
	}

	if err := s.EntityRepo.Create(ctx, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func validateTierNesting(parentTier, childTier types.EntityTier) error {
	valid := (parentTier == types.EntityTierM1 && childTier == types.EntityTierM2) ||
		(parentTier == types.EntityTierM2 && childTier == types.EntityTierM3)
	if !valid {
		return ierr.NewError("invalid tier nesting").
			WithHintf("A %s entity cannot be a child of a %s entity", childTier, parentTier).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *permissionService) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	return s.EntityRepo.Get(ctx, id)
}

func (s *permissionService) ResolveEntity(ctx context.Context, explicitID, headerID, domain string) (*entity.Entity, error) {
	if explicitID != "" {
		return s.EntityRepo.Get(ctx, explicitID)
	}
	if headerID != "" {
		return s.EntityRepo.Get(ctx, headerID)
	}
	if domain != "" {
		ent, err := s.EntityRepo.GetByDomain(ctx, domain)
		if err == nil {
			return ent, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}
	if workspaceID := types.GetWorkspaceID(ctx); workspaceID != "" {
		return s.EntityRepo.GetByWorkspace(ctx, workspaceID)
	}
	return nil, ierr.NewError("no entity in request").
		WithHint("Could not resolve an acting entity for this request").
		Mark(ierr.ErrNotFound)
}

func (s *permissionService) ListPendingRequests(ctx context.Context, entityID string) (*dto.ListPermissionRequestsResponse, error) {
	items, err := s.PermissionReqRepo.ListPending(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return &dto.ListPermissionRequestsResponse{Items: items, Total: len(items)}, nil
}
