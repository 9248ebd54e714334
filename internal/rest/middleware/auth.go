package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/config"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// AuthMiddleware validates the service bearer token on every API request.
// Webhook routes carry their own gateway signatures and must not pass
// through this middleware.
func AuthMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Auth.ServiceToken == "" {
			c.Error(ierr.NewError("service token is not configured").
				WithHint("Server is misconfigured").
				Mark(ierr.ErrConfiguration))
			c.Abort()
			return
		}

		header := c.GetHeader(types.HeaderAuthorization)
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.Error(ierr.NewError("missing authorization token").
				WithHint("Provide a bearer token").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Auth.ServiceToken)) != 1 {
			c.Error(ierr.NewError("invalid authorization token").
				WithHint("Provide a valid bearer token").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}

		c.Next()
	}
}
