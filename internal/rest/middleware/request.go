package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/types"
)

// RequestIDMiddleware tags every request with an ID for log correlation.
// Incoming X-Request-ID headers are honoured so gateway retries can be
// traced end to end.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx := context.WithValue(c.Request.Context(), types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Writer.Header().Set(types.HeaderRequestID, requestID)
	c.Next()
}

// ContextMiddleware copies the workspace and entity identity headers into
// the request context so services never touch gin directly.
func ContextMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if workspaceID := c.GetHeader(cfg.Auth.SessionHeader); workspaceID != "" {
			ctx = context.WithValue(ctx, types.CtxWorkspaceID, workspaceID)
		}
		if entityID := c.GetHeader(types.HeaderEntityID); entityID != "" {
			ctx = context.WithValue(ctx, types.CtxEntityID, entityID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
