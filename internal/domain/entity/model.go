package entity

import (
	"strings"
	"time"

	"github.com/stackbill/stackbill/internal/types"
)

// Entity is a node in the reseller hierarchy (M1 master -> M2 facade ->
// M3 dropshipper). The materialized path plus depth makes the ancestor
// chain a single indexed prefix query instead of N parent lookups.
type Entity struct {
	// ID is the unique identifier for the entity
	ID string `db:"id" json:"id"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// Tier is the hierarchy tier (m1/m2/m3)
	Tier types.EntityTier `db:"tier" json:"tier"`

	// ParentID is the parent entity; empty for roots
	ParentID string `db:"parent_id" json:"parent_id"`

	// Path is the materialized path of ancestor IDs including self,
	// e.g. /ent_a/ent_b/ent_c/
	Path string `db:"path" json:"path"`

	// Depth is the number of ancestors
	Depth int `db:"depth" json:"depth"`

	// Domain is the storefront hostname mapped to this entity, if any
	Domain string `db:"domain" json:"domain"`

	// IsActive gates whether the entity can transact
	IsActive bool `db:"is_active" json:"is_active"`

	types.BaseModel
}

// AncestorIDs returns the IDs on the path, root first, excluding self.
func (e *Entity) AncestorIDs() []string {
	segments := strings.Split(strings.Trim(e.Path, "/"), "/")
	if len(segments) <= 1 {
		return nil
	}
	return segments[:len(segments)-1]
}

// ChainIDs returns the IDs on the path, root first, including self.
func (e *Entity) ChainIDs() []string {
	segments := strings.Split(strings.Trim(e.Path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return nil
	}
	return segments
}

// BuildPath materializes the path for a child of parent.
func BuildPath(parent *Entity, id string) string {
	if parent == nil {
		return "/" + id + "/"
	}
	return parent.Path + id + "/"
}

// PermissionRow is one (entity, key, scope) decision in the matrix.
type PermissionRow struct {
	// ID is the unique identifier for the row
	ID string `db:"id" json:"id"`

	// EntityID is the entity the decision is recorded on
	EntityID string `db:"entity_id" json:"entity_id"`

	// Key is the action key being decided, e.g. "catalog.publish"
	Key string `db:"key" json:"key"`

	// Scope qualifies the key; empty scope matches any
	Scope types.PermissionScope `db:"scope" json:"scope"`

	// Allowed is the decision
	Allowed bool `db:"allowed" json:"allowed"`

	// Locked prevents any descendant from overriding this decision.
	// Lock precedence is a read-time property of the resolution walk, so
	// locking needs no cascade write.
	Locked bool `db:"locked" json:"locked"`

	// Source records how the row came to exist (operator, training, import)
	Source string `db:"source" json:"source"`

	// SetByEntity is the entity whose operator recorded the decision
	SetByEntity string `db:"set_by_entity" json:"set_by_entity"`

	types.BaseModel
}

// PermissionRequest is an undefined decision logged during training mode,
// waiting for an operator to decide.
type PermissionRequest struct {
	// ID is the unique identifier for the request
	ID string `db:"id" json:"id"`

	// EntityID is the entity the undefined key was evaluated for
	EntityID string `db:"entity_id" json:"entity_id"`

	// Key/Scope identify the undefined decision
	Key   string                `db:"key" json:"key"`
	Scope types.PermissionScope `db:"scope" json:"scope"`

	// Method/Route capture the request that triggered the evaluation
	Method string `db:"method" json:"method"`
	Route  string `db:"route" json:"route"`

	// Context is free-form evaluation context for the operator
	Context string `db:"context" json:"context"`

	// Resolved marks whether an operator has recorded a decision since
	Resolved   bool       `db:"resolved" json:"resolved"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at"`

	types.BaseModel
}
