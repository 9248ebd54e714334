package types

import "context"

type ContextKey string

const (
	CtxWorkspaceID   ContextKey = "ctx_workspace_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxEntityID      ContextKey = "ctx_entity_id"
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxDBTransaction ContextKey = "ctx_db_transaction"
)

const (
	DefaultWorkspaceID = "ws_default"
	DefaultUserID      = "user_system"

	HeaderAuthorization = "Authorization"
	HeaderEntityID      = "X-Entity-ID"
	HeaderRequestID     = "X-Request-ID"
)

func GetWorkspaceID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxWorkspaceID).(string); ok {
		return id
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxUserID).(string); ok {
		return id
	}
	return ""
}

func GetEntityID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxEntityID).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}

// SetWorkspaceID returns a child context scoped to the given workspace.
func SetWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, CtxWorkspaceID, workspaceID)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func SetEntityID(ctx context.Context, entityID string) context.Context {
	return context.WithValue(ctx, CtxEntityID, entityID)
}
