package http

import (
	"context"
	"log/slog"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/logging"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
