package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/example/desk-booking/internal/application"
)

type authService interface {
	Authenticator
	Login(ctx context.Context, params application.LoginParams) (application.LoginResult, error)
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
}

// AuthHandler serves login and account management.
type AuthHandler struct {
	service   authService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, validate: newValidator(), responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// Login exchanges credentials for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, h.validate, h.responder, &req) {
		return
	}

	ctx := c.Request.Context()
	result, err := h.service.Login(ctx, application.LoginParams{Email: req.Email, Password: req.Password})
	if err != nil {
		h.log(ctx, "Login").WarnContext(ctx, "login rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	h.responder.writeJSON(c, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserDTO(result.User),
	})
}

// CreateUser registers an account. Administrators only.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, h.validate, h.responder, &req) {
		return
	}

	principal, _ := PrincipalFromContext(c.Request.Context())
	user, err := h.service.CreateUser(c.Request.Context(), application.CreateUserParams{
		Principal:   principal,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, toUserDTO(user))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	TokenType string  `json:"token_type"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}

type createUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	IsAdmin     bool   `json:"is_admin"`
}

type userDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	CreatedAt   string `json:"created_at"`
}

func toUserDTO(u application.User) userDTO {
	return userDTO{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
