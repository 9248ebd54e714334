package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/entity"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryEntityStore implements entity.Repository
type InMemoryEntityStore struct {
	*InMemoryStore[*entity.Entity]
}

func NewInMemoryEntityStore() *InMemoryEntityStore {
	return &InMemoryEntityStore{
		InMemoryStore: NewInMemoryStore[*entity.Entity](),
	}
}

func (s *InMemoryEntityStore) Create(ctx context.Context, e *entity.Entity) error {
	if e == nil {
		return ierr.NewError("entity cannot be nil").
			WithHint("Entity cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, e.ID, copyEntity(e))
}

func (s *InMemoryEntityStore) Get(ctx context.Context, id string) (*entity.Entity, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyEntity(e), nil
}

func (s *InMemoryEntityStore) GetByDomain(ctx context.Context, domain string) (*entity.Entity, error) {
	entities, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, e *entity.Entity, _ interface{}) bool {
		return strings.EqualFold(e.Domain, domain) && e.Domain != ""
	}, nil)
	if len(entities) == 0 {
		return nil, ierr.NewError("entity not found").
			WithHint("No entity for this domain").
			Mark(ierr.ErrNotFound)
	}
	return copyEntity(entities[0]), nil
}

func (s *InMemoryEntityStore) GetByWorkspace(ctx context.Context, workspaceID string) (*entity.Entity, error) {
	entities, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, e *entity.Entity, _ interface{}) bool {
		return e.WorkspaceID == workspaceID
	}, func(i, j *entity.Entity) bool {
		return i.Depth > j.Depth
	})
	if len(entities) == 0 {
		return nil, ierr.NewError("entity not found").
			WithHint("No entity for this workspace").
			Mark(ierr.ErrNotFound)
	}
	return copyEntity(entities[0]), nil
}

func (s *InMemoryEntityStore) Update(ctx context.Context, e *entity.Entity) error {
	return s.InMemoryStore.Update(ctx, e.ID, copyEntity(e))
}

func (s *InMemoryEntityStore) ListDescendants(ctx context.Context, pathPrefix string) ([]*entity.Entity, error) {
	entities, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, e *entity.Entity, _ interface{}) bool {
		return strings.HasPrefix(e.Path, pathPrefix) && e.Path != pathPrefix
	}, func(i, j *entity.Entity) bool {
		return i.Depth < j.Depth
	})
	return lo.Map(entities, func(e *entity.Entity, _ int) *entity.Entity {
		return copyEntity(e)
	}), nil
}

func copyEntity(e *entity.Entity) *entity.Entity {
	clone := *e
	return &clone
}

// InMemoryPermissionStore implements entity.PermissionRepository keyed by
// (entity, key, scope), matching the postgres upsert.
type InMemoryPermissionStore struct {
	mu   sync.RWMutex
	rows map[string]*entity.PermissionRow
}

func NewInMemoryPermissionStore() *InMemoryPermissionStore {
	return &InMemoryPermissionStore{
		rows: make(map[string]*entity.PermissionRow),
	}
}

func (s *InMemoryPermissionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*entity.PermissionRow)
}

func permissionKey(entityID string, key string, scope types.PermissionScope) string {
	return entityID + "|" + key + "|" + string(scope)
}

func (s *InMemoryPermissionStore) UpsertRow(ctx context.Context, row *entity.PermissionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *row
	s.rows[permissionKey(row.EntityID, row.Key, row.Scope)] = &clone
	return nil
}

func (s *InMemoryPermissionStore) GetRow(ctx context.Context, entityID string, key string, scope types.PermissionScope) (*entity.PermissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[permissionKey(entityID, key, scope)]; ok {
		clone := *row
		return &clone, nil
	}
	return nil, ierr.NewError("permission row not found").
		WithHint("No decision recorded for this key").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPermissionStore) ListRowsForChain(ctx context.Context, chainIDs []string, key string) ([]*entity.PermissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*entity.PermissionRow{}
	for _, row := range s.rows {
		if row.Key == key && lo.Contains(chainIDs, row.EntityID) {
			clone := *row
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (s *InMemoryPermissionStore) ListRowsForEntity(ctx context.Context, entityID string) ([]*entity.PermissionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*entity.PermissionRow{}
	for _, row := range s.rows {
		if row.EntityID == entityID {
			clone := *row
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (s *InMemoryPermissionStore) Unlock(ctx context.Context, entityID string, key string, scope types.PermissionScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[permissionKey(entityID, key, scope)]
	if !ok {
		return ierr.NewError("permission row not found").
			WithHint("No decision recorded for this key").
			Mark(ierr.ErrNotFound)
	}
	row.Locked = false
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// InMemoryPermissionRequestStore implements entity.PermissionRequestRepository
type InMemoryPermissionRequestStore struct {
	*InMemoryStore[*entity.PermissionRequest]
}

func NewInMemoryPermissionRequestStore() *InMemoryPermissionRequestStore {
	return &InMemoryPermissionRequestStore{
		InMemoryStore: NewInMemoryStore[*entity.PermissionRequest](),
	}
}

func (s *InMemoryPermissionRequestStore) Create(ctx context.Context, request *entity.PermissionRequest) error {
	clone := *request
	return s.InMemoryStore.Create(ctx, request.ID, &clone)
}

func (s *InMemoryPermissionRequestStore) Get(ctx context.Context, id string) (*entity.PermissionRequest, error) {
	request, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	clone := *request
	return &clone, nil
}

func (s *InMemoryPermissionRequestStore) ListPending(ctx context.Context, entityID string) ([]*entity.PermissionRequest, error) {
	requests, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, request *entity.PermissionRequest, _ interface{}) bool {
		return request.EntityID == entityID && !request.Resolved
	}, func(i, j *entity.PermissionRequest) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	})
	return lo.Map(requests, func(request *entity.PermissionRequest, _ int) *entity.PermissionRequest {
		clone := *request
		return &clone
	}), nil
}

func (s *InMemoryPermissionRequestStore) MarkResolved(ctx context.Context, id string) error {
	request, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if request.Resolved {
		return nil
	}
	now := time.Now().UTC()
	request.Resolved = true
	request.ResolvedAt = &now
	return s.InMemoryStore.Update(ctx, id, request)
}
