package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

// PermissionMiddleware gates a route on the entity's permission matrix.
// The key names the action ("subscription.cancel"), resolved against the
// entity identified by the X-Entity-ID header. Requests with no entity
// header skip the gate; they run under the service token alone.
func PermissionMiddleware(svc service.PermissionService, log *logger.Logger, key string, scope types.PermissionScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		entityID := types.GetEntityID(ctx)
		if entityID == "" {
			c.Next()
			return
		}

		resp, err := svc.EvaluateForRequest(ctx, &dto.CheckPermissionRequest{
			EntityID: entityID,
			Key:      key,
			Scope:    scope,
		}, c.Request.Method, c.FullPath())
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		switch resp.Decision {
		case types.PermissionDecisionAllowed:
			c.Next()
		case types.PermissionDecisionPending:
			// 428: the action is queued for an operator decision. The
			// client is expected to retry after the matrix is trained.
			c.AbortWithStatusJSON(http.StatusPreconditionRequired, gin.H{
				"success": false,
				"error": gin.H{
					"message":      "This action is awaiting an operator decision",
					"training_url": resp.TrainingURL,
				},
			})
		default:
			log.Debugw("permission denied",
				"entity_id", entityID,
				"key", key,
				"decided_by", resp.DecidedBy)
			c.Error(ierr.NewError("permission denied").
				WithHintf("Action %s is not permitted for this entity", key).
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
		}
	}
}
