package middleware

import "context"

type ctxKey string

// ContextRole - роль вызывающего сервиса из service JWT.
const ContextRole ctxKey = "role"

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextRole, role)
}

func RoleFrom(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ContextRole).(string)
	return role, ok && role != ""
}

// contextAuthDisabled ставит ServiceAuth, когда SERVICE_JWT_SECRET не задан.
const contextAuthDisabled ctxKey = "auth_disabled"

func authDisabled(ctx context.Context) bool {
	b, _ := ctx.Value(contextAuthDisabled).(bool)
	return b
}
