package dto

import (
	"github.com/stackbill/stackbill/internal/domain/entity"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// CheckPermissionRequest evaluates one (key, scope) for an entity.
type CheckPermissionRequest struct {
	EntityID string                `json:"entity_id" binding:"required"`
	Key      string                `json:"key" binding:"required"`
	Scope    types.PermissionScope `json:"scope"`
}

// CheckPermissionResponse is the resolved decision plus where it came from.
type CheckPermissionResponse struct {
	Decision types.PermissionDecision `json:"decision"`

	// DecidedBy is the entity whose matrix row decided, empty when
	// undefined.
	DecidedBy string `json:"decided_by,omitempty"`
	Locked    bool   `json:"locked"`

	// TrainingURL points the operator at the pending decision queue when
	// the decision is pending in training mode.
	TrainingURL string `json:"training_url,omitempty"`
}

// SetPermissionRequest records a decision on an entity's matrix.
type SetPermissionRequest struct {
	EntityID string                `json:"entity_id" binding:"required"`
	Key      string                `json:"key" binding:"required"`
	Scope    types.PermissionScope `json:"scope"`
	Allowed  bool                  `json:"allowed"`
	Locked   bool                  `json:"locked"`
}

// CreateEntityRequest adds a node to the reseller hierarchy.
type CreateEntityRequest struct {
	Name     string           `json:"name" binding:"required"`
	Tier     types.EntityTier `json:"tier" binding:"required"`
	ParentID string           `json:"parent_id"`
	Domain   string           `json:"domain"`
}

func (r *CreateEntityRequest) Validate() error {
	switch r.Tier {
	case types.EntityTierM1:
		if r.ParentID != "" {
			return ierr.NewError("m1 with parent").
				WithHint("Root entities cannot have a parent").
				Mark(ierr.ErrValidation)
		}
	case types.EntityTierM2, types.EntityTierM3:
		if r.ParentID == "" {
			return ierr.NewError("child tier without parent").
				WithHint("M2 and M3 entities require a parent").
				Mark(ierr.ErrValidation)
		}
	default:
		return ierr.NewError("unknown tier").
			WithHint("Tier must be m1, m2 or m3").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// EntityResponse is the API shape of a hierarchy node.
type EntityResponse struct {
	*entity.Entity
}

// ListPermissionRequestsResponse lists pending training-mode requests.
type ListPermissionRequestsResponse struct {
	Items []*entity.PermissionRequest `json:"items"`
	Total int                         `json:"total"`
}
