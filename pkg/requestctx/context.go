// Package requestctx carries request-scoped identity through context:
// request id, tenant, acting user, and the user's clearance set consumed by
// label-based access control.
package requestctx

import "context"

type contextKey string

var (
	requestIDKey  = contextKey("X-Request-Id")
	tenantIDKey   = contextKey("X-Tenant-Id")
	userIDKey     = contextKey("X-User-Id")
	clearancesKey = contextKey("X-Clearances")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	value, ok := ctx.Value(tenantIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	value, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetClearances(ctx context.Context, clearances []string) context.Context {
	return context.WithValue(ctx, clearancesKey, clearances)
}

func GetClearances(ctx context.Context) []string {
	value, ok := ctx.Value(clearancesKey).([]string)
	if !ok {
		return nil
	}
	return value
}
