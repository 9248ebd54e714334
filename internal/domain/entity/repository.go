package entity

import (
	"context"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, entity *Entity) error
	Get(ctx context.Context, id string) (*Entity, error)
	GetByDomain(ctx context.Context, domain string) (*Entity, error)
	GetByWorkspace(ctx context.Context, workspaceID string) (*Entity, error)
	Update(ctx context.Context, entity *Entity) error

	// ListDescendants returns all entities under the given path prefix.
	ListDescendants(ctx context.Context, pathPrefix string) ([]*Entity, error)
}

type PermissionRepository interface {
	// UpsertRow writes a decision keyed by (entity, key, scope).
	UpsertRow(ctx context.Context, row *PermissionRow) error

	GetRow(ctx context.Context, entityID string, key string, scope types.PermissionScope) (*PermissionRow, error)

	// ListRowsForChain returns all rows for the given key across the chain
	// of entity IDs, one query for the whole ancestor walk.
	ListRowsForChain(ctx context.Context, chainIDs []string, key string) ([]*PermissionRow, error)

	ListRowsForEntity(ctx context.Context, entityID string) ([]*PermissionRow, error)

	// Unlock clears the lock on a row; the only way a locked ancestor
	// decision stops binding descendants.
	Unlock(ctx context.Context, entityID string, key string, scope types.PermissionScope) error
}

type PermissionRequestRepository interface {
	Create(ctx context.Context, request *PermissionRequest) error
	Get(ctx context.Context, id string) (*PermissionRequest, error)
	ListPending(ctx context.Context, entityID string) ([]*PermissionRequest, error)
	MarkResolved(ctx context.Context, id string) error
}
