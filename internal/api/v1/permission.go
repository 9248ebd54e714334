package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type PermissionHandler struct {
	permissionService service.PermissionService
	logger            *logger.Logger
}

func NewPermissionHandler(permissionService service.PermissionService, logger *logger.Logger) *PermissionHandler {
	return &PermissionHandler{
		permissionService: permissionService,
		logger:            logger,
	}
}

// CheckPermission godoc
// @Summary Resolve a permission key for an entity
// @Description Walks the entity chain root-down; locked ancestor decisions win
// @Tags Permissions
// @Accept json
// @Produce json
// @Param request body dto.CheckPermissionRequest true "Entity, key and scope"
// @Success 200 {object} dto.CheckPermissionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /permissions/check [post]
func (h *PermissionHandler) CheckPermission(c *gin.Context) {
	var req dto.CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.permissionService.Evaluate(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SetPermission godoc
// @Summary Record a permission decision on an entity
// @Description Also resolves any pending training requests for the same key
// @Tags Permissions
// @Accept json
// @Produce json
// @Param request body dto.SetPermissionRequest true "Decision"
// @Success 204
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /permissions [put]
func (h *PermissionHandler) SetPermission(c *gin.Context) {
	var req dto.SetPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	if err := h.permissionService.ApplyDecision(c.Request.Context(), &req); err != nil {
		h.logger.Errorw("failed to apply permission decision", "error", err,
			"entity_id", req.EntityID, "key", req.Key)
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UnlockPermission godoc
// @Summary Clear the lock on a permission row
// @Tags Permissions
// @Accept json
// @Produce json
// @Param request body dto.SetPermissionRequest true "Row to unlock"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /permissions/unlock [post]
func (h *PermissionHandler) UnlockPermission(c *gin.Context) {
	var req dto.SetPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	if err := h.permissionService.Unlock(c.Request.Context(), req.EntityID, req.Key, req.Scope); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListPendingRequests godoc
// @Summary List pending training-mode permission requests
// @Tags Permissions
// @Produce json
// @Param entity_id query string true "Entity ID"
// @Success 200 {object} dto.ListPermissionRequestsResponse
// @Router /permissions/requests [get]
func (h *PermissionHandler) ListPendingRequests(c *gin.Context) {
	entityID := c.Query("entity_id")
	if entityID == "" {
		entityID = types.GetEntityID(c.Request.Context())
	}
	if entityID == "" {
		c.Error(ierr.NewError("entity id is required").
			WithHint("Provide an entity_id query parameter").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.permissionService.ListPendingRequests(c.Request.Context(), entityID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateEntity godoc
// @Summary Add a node to the reseller hierarchy
// @Tags Entities
// @Accept json
// @Produce json
// @Param entity body dto.CreateEntityRequest true "Entity details"
// @Success 201 {object} dto.EntityResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /entities [post]
func (h *PermissionHandler) CreateEntity(c *gin.Context) {
	var req dto.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	ent, err := h.permissionService.CreateEntity(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("failed to create entity", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.EntityResponse{Entity: ent})
}

// GetEntity godoc
// @Summary Get a hierarchy node by ID
// @Tags Entities
// @Produce json
// @Param id path string true "Entity ID"
// @Success 200 {object} dto.EntityResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /entities/{id} [get]
func (h *PermissionHandler) GetEntity(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid entity id").Mark(ierr.ErrValidation))
		return
	}

	ent, err := h.permissionService.GetEntity(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.EntityResponse{Entity: ent})
}
