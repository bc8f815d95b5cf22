// Package middleware provides the echo middleware stack: request identity,
// request logging, and error translation.
package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/BrianCLong/summit-sub013/pkg/requestctx"
)

const (
	// HeaderTenantID is the header key for tenant ID
	HeaderTenantID = "X-Tenant-ID"
	// HeaderUserID is the header key for user ID
	HeaderUserID = "X-User-ID"
	// HeaderClearances is the header key for the actor's comma-separated
	// clearance set, populated by the authenticating gateway
	HeaderClearances = "X-Clearances"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			// get tenant id from header
			tenantID := req.Header.Get(HeaderTenantID)

			// get user id from header
			userID := req.Header.Get(HeaderUserID)

			ctx := req.Context()
			ctx = requestctx.SetRequestID(ctx, requestID)
			ctx = requestctx.SetTenantID(ctx, tenantID)
			ctx = requestctx.SetUserID(ctx, userID)
			ctx = requestctx.SetClearances(ctx, parseClearances(req.Header.Get(HeaderClearances)))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

func parseClearances(header string) []string {
	if header == "" {
		return nil
	}
	var clearances []string
	for _, part := range strings.Split(header, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			clearances = append(clearances, trimmed)
		}
	}
	return clearances
}
