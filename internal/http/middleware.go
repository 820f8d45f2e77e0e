package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/logging"
)

// RequestIDHeader echoes the identifier assigned to each request.
const RequestIDHeader = "X-Request-ID"

// Authenticator resolves a bearer token to the principal it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (application.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal in the request context.
func RequireAuth(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			responder.writeError(c, http.StatusUnauthorized, "AUTH_UNAUTHORIZED", errMissingToken)
			c.Abort()
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, application.ErrUnauthorized), errors.Is(err, application.ErrInvalidCredentials):
				responder.writeJSON(c, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_TOKEN_INVALID",
					Message:   "the access token is invalid or has expired",
				})
			default:
				responder.handleServiceError(c, err)
			}
			c.Abort()
			return
		}

		ctx := ContextWithPrincipal(c.Request.Context(), principal)
		if logger := LoggerFromContext(ctx); logger != nil {
			ctx = logging.ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin lets only administrators through. It must run after RequireAuth.
func RequireAdmin(logger *slog.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c.Request.Context())
		if !ok {
			responder.handleServiceError(c, application.ErrUnauthorized)
			c.Abort()
			return
		}
		if !principal.IsAdmin {
			responder.handleServiceError(c, application.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger assigns a request id, attaches a request scoped logger to the
// context and logs the outcome of every request.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	base = defaultLogger(base)

	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		logger := base.With(
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(c.Request.Context(), logger))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{"status", status, "latency", time.Since(start)}
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(c.Request.Context(), "request completed", attrs...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(c.Request.Context(), "request completed", attrs...)
		default:
			logger.InfoContext(c.Request.Context(), "request completed", attrs...)
		}
	}
}

// RequestTimeout bounds the context every handler runs with.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
