package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const entityColumns = `
	id, name, tier, parent_id, path, depth, domain, is_active,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const permissionRowColumns = `
	id, entity_id, key, scope, allowed, locked, source, set_by_entity,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const permissionRequestColumns = `
	id, entity_id, key, scope, method, route, context, resolved, resolved_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type entityRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewEntityRepository(db postgres.IClient, logger *logger.Logger) entity.Repository {
	return &entityRepository{db: db, logger: logger}
}

func (r *entityRepository) Create(ctx context.Context, e *entity.Entity) error {
	query := `
	INSERT INTO entities (` + entityColumns + `
	) VALUES (
		:id, :name, :tier, :parent_id, :path, :depth, :domain, :is_active,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, e); err != nil {
		return wrapExecErr(err, "entity")
	}
	return nil
}

func (r *entityRepository) Get(ctx context.Context, id string) (*entity.Entity, error) {
	query := `SELECT` + entityColumns + ` FROM entities WHERE id = $1 AND status != $2`

	var e entity.Entity
	if err := r.db.Querier(ctx).GetContext(ctx, &e, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "entity")
	}
	return &e, nil
}

func (r *entityRepository) GetByDomain(ctx context.Context, domain string) (*entity.Entity, error) {
	query := `SELECT` + entityColumns + ` FROM entities WHERE LOWER(domain) = LOWER($1) AND status != $2`

	var e entity.Entity
	if err := r.db.Querier(ctx).GetContext(ctx, &e, query, domain, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "entity")
	}
	return &e, nil
}

func (r *entityRepository) GetByWorkspace(ctx context.Context, workspaceID string) (*entity.Entity, error) {
	query := `SELECT` + entityColumns + ` FROM entities WHERE workspace_id = $1 AND status != $2 ORDER BY depth DESC LIMIT 1`

	var e entity.Entity
	if err := r.db.Querier(ctx).GetContext(ctx, &e, query, workspaceID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "entity")
	}
	return &e, nil
}

func (r *entityRepository) Update(ctx context.Context, e *entity.Entity) error {
	query := `
	UPDATE entities SET
		name = :name,
		domain = :domain,
		is_active = :is_active,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, e); err != nil {
		return wrapExecErr(err, "entity")
	}
	return nil
}

// ListDescendants is a prefix scan over the materialized path; the node
// itself is excluded.
func (r *entityRepository) ListDescendants(ctx context.Context, pathPrefix string) ([]*entity.Entity, error) {
	query := `SELECT` + entityColumns + `
	FROM entities
	WHERE path LIKE $1 || '%' AND path != $1 AND status != $2
	ORDER BY depth ASC, created_at ASC`

	entities := []*entity.Entity{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &entities, query, pathPrefix, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "entities")
	}
	return entities, nil
}

type permissionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPermissionRepository(db postgres.IClient, logger *logger.Logger) entity.PermissionRepository {
	return &permissionRepository{db: db, logger: logger}
}

func (r *permissionRepository) UpsertRow(ctx context.Context, row *entity.PermissionRow) error {
	query := `
	INSERT INTO permission_rows (` + permissionRowColumns + `
	) VALUES (
		:id, :entity_id, :key, :scope, :allowed, :locked, :source, :set_by_entity,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)
	ON CONFLICT (entity_id, key, scope)
	DO UPDATE SET
		allowed = EXCLUDED.allowed,
		locked = EXCLUDED.locked,
		source = EXCLUDED.source,
		set_by_entity = EXCLUDED.set_by_entity,
		updated_at = NOW(),
		updated_by = EXCLUDED.updated_by`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, row); err != nil {
		return wrapExecErr(err, "permission row")
	}
	return nil
}

func (r *permissionRepository) GetRow(ctx context.Context, entityID string, key string, scope types.PermissionScope) (*entity.PermissionRow, error) {
	query := `SELECT` + permissionRowColumns + `
	FROM permission_rows
	WHERE entity_id = $1 AND key = $2 AND scope = $3 AND status != $4`

	var row entity.PermissionRow
	if err := r.db.Querier(ctx).GetContext(ctx, &row, query, entityID, key, scope, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "permission row")
	}
	return &row, nil
}

func (r *permissionRepository) ListRowsForChain(ctx context.Context, chainIDs []string, key string) ([]*entity.PermissionRow, error) {
	if len(chainIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT`+permissionRowColumns+`
	FROM permission_rows
	WHERE entity_id IN (?) AND key = ? AND status != ?`,
		chainIDs, key, types.StatusDeleted)
	if err != nil {
		return nil, wrapListErr(err, "permission rows")
	}

	q := r.db.Querier(ctx)
	rows := []*entity.PermissionRow{}
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "permission rows")
	}
	return rows, nil
}

func (r *permissionRepository) ListRowsForEntity(ctx context.Context, entityID string) ([]*entity.PermissionRow, error) {
	query := `SELECT` + permissionRowColumns + `
	FROM permission_rows
	WHERE entity_id = $1 AND status != $2
	ORDER BY key ASC, scope ASC`

	rows := []*entity.PermissionRow{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, entityID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "permission rows")
	}
	return rows, nil
}

func (r *permissionRepository) Unlock(ctx context.Context, entityID string, key string, scope types.PermissionScope) error {
	query := `
	UPDATE permission_rows
	SET locked = FALSE, updated_at = NOW()
	WHERE entity_id = $1 AND key = $2 AND scope = $3 AND status != $4`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, entityID, key, scope, types.StatusDeleted)
	if err != nil {
		return wrapExecErr(err, "permission row")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return wrapGetErr(sql.ErrNoRows, "permission row")
	}
	return nil
}

type permissionRequestRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPermissionRequestRepository(db postgres.IClient, logger *logger.Logger) entity.PermissionRequestRepository {
	return &permissionRequestRepository{db: db, logger: logger}
}

func (r *permissionRequestRepository) Create(ctx context.Context, request *entity.PermissionRequest) error {
	query := `
	INSERT INTO permission_requests (` + permissionRequestColumns + `
	) VALUES (
		:id, :entity_id, :key, :scope, :method, :route, :context, :resolved, :resolved_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, request); err != nil {
		return wrapExecErr(err, "permission request")
	}
	return nil
}

func (r *permissionRequestRepository) Get(ctx context.Context, id string) (*entity.PermissionRequest, error) {
	query := `SELECT` + permissionRequestColumns + ` FROM permission_requests WHERE id = $1 AND status != $2`

	var request entity.PermissionRequest
	if err := r.db.Querier(ctx).GetContext(ctx, &request, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "permission request")
	}
	return &request, nil
}

func (r *permissionRequestRepository) ListPending(ctx context.Context, entityID string) ([]*entity.PermissionRequest, error) {
	query := `SELECT` + permissionRequestColumns + `
	FROM permission_requests
	WHERE entity_id = $1 AND resolved = FALSE AND status != $2
	ORDER BY created_at ASC`

	requests := []*entity.PermissionRequest{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &requests, query, entityID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "permission requests")
	}
	return requests, nil
}

func (r *permissionRequestRepository) MarkResolved(ctx context.Context, id string) error {
	query := `
	UPDATE permission_requests
	SET resolved = TRUE, resolved_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND resolved = FALSE`

	if _, err := r.db.Querier(ctx).ExecContext(ctx, query, id); err != nil {
		return wrapExecErr(err, "permission request")
	}
	return nil
}
