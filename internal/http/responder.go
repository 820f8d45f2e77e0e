package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/scheduler"
)

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errMissingToken    = errors.New("authorization header must carry a bearer token")
	errMissingBookable = errors.New("either start and end or date with start_time and end_time is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func (r responder) writeError(c *gin.Context, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(c.Request.Context()).WarnContext(c.Request.Context(), "request failed", "status", status, "error", err)
	}
	r.writeJSON(c, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError renders an application error with the matching status code.
func (r responder) handleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if err == nil {
		r.writeError(c, http.StatusInternalServerError, "INTERNAL", errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: validationCode(vErr.Cause),
			Message:   vErr.Error(),
			Errors:    vErr.FieldErrors,
		})
	case errors.As(err, &cErr):
		r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   cErr.Error(),
			Conflicts: toConflictDTOs(cErr.Conflicts),
		})
	case errors.Is(err, application.ErrUnauthorized), errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(c, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_UNAUTHORIZED", Message: "authentication is required"})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(c, http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: "you are not allowed to perform this operation"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(c, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "the requested resource does not exist"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(c, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "the resource already exists"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(c, http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: "an internal error occurred"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func validationCode(cause error) string {
	switch {
	case cause == nil:
		return "VALIDATION_FAILED"
	case errors.Is(cause, application.ErrInvalidInterval):
		return "INVALID_INTERVAL"
	case errors.Is(cause, application.ErrStartInPast):
		return "START_IN_PAST"
	case errors.Is(cause, application.ErrUnknownDesk):
		return "UNKNOWN_DESK"
	case errors.Is(cause, application.ErrUnknownUser):
		return "UNKNOWN_USER"
	case errors.Is(cause, application.ErrConfiguration):
		return "CONFIGURATION"
	case errors.Is(cause, application.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(cause, application.ErrCheckInWindow):
		return "CHECK_IN_WINDOW"
	case errors.Is(cause, application.ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(cause, scheduler.ErrPastDate):
		return "PAST_DATE"
	default:
		return "VALIDATION_FAILED"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}
