package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
)

// AuthServiceDeps captures the collaborators of AuthService.
type AuthServiceDeps struct {
	Users  persistence.UserRepository
	Audit  persistence.AuditRepository
	Sink   events.Sink
	Tokens *TokenIssuer
	Hash   PasswordHasher
	Verify PasswordVerifier
	Now    func() time.Time
	Logger *slog.Logger
}

// AuthService logs users in, resolves access tokens and manages accounts.
type AuthService struct {
	users  persistence.UserRepository
	tokens *TokenIssuer
	hash   PasswordHasher
	verify PasswordVerifier
	audit  *auditor
	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(deps AuthServiceDeps) *AuthService {
	if deps.Hash == nil {
		deps.Hash = HashPassword
	}
	if deps.Verify == nil {
		deps.Verify = VerifyPassword
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := defaultLogger(deps.Logger)
	return &AuthService{
		users:  deps.Users,
		tokens: deps.Tokens,
		hash:   deps.Hash,
		verify: deps.Verify,
		audit:  newAuditor(deps.Audit, deps.Sink, deps.Now, logger),
		now:    deps.Now,
		logger: logger,
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login checks the credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if s == nil || s.users == nil || s.tokens == nil {
		err = fmt.Errorf("AuthService is not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			if email != "" && errors.Is(err, ErrInvalidCredentials) {
				s.audit.failure(ctx, s.audit.event(events.TypeUserLogin, email, "", ComponentAuth, "login rejected"))
			}
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var stored persistence.User
	stored, err = s.users.GetUser(ctx, email)
	if errors.Is(err, persistence.ErrNotFound) {
		err = ErrInvalidCredentials
		return
	}
	if err != nil {
		err = &StorageError{Op: "load user", Err: err}
		return
	}

	if verr := s.verify(stored.PasswordHash, params.Password); verr != nil {
		if !errors.Is(verr, ErrInvalidCredentials) {
			logger.WarnContext(ctx, "stored password hash unusable", "error", verr)
		}
		err = ErrInvalidCredentials
		return
	}

	principal := Principal{UserID: stored.ID, IsAdmin: stored.IsAdmin}
	var token string
	var expiresAt time.Time
	token, expiresAt, err = s.tokens.Issue(principal)
	if err != nil {
		return
	}

	s.audit.record(ctx, s.audit.event(events.TypeUserLogin, stored.ID, persistence.OutcomeSuccess, ComponentAuth, "user logged in"))
	result = LoginResult{User: toUser(stored), Token: token, ExpiresAt: expiresAt}
	return
}

// Authenticate resolves an access token to its principal.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("AuthService is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	principal, err := s.tokens.Parse(token)
	if err != nil {
		s.loggerWith(ctx, "Authenticate").DebugContext(ctx, "token rejected", "error", err)
		return Principal{}, err
	}
	return principal, nil
}

// CreateUser registers an account. Only administrators may create accounts.
func (s *AuthService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("AuthService is not configured")
		return
	}
	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "CreateUser",
		"principal_id", params.Principal.UserID,
		"email", email,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "is_admin", user.IsAdmin).InfoContext(ctx, "user created")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	user, err = s.createUser(ctx, email, params.DisplayName, params.Password, params.IsAdmin)
	if err == nil {
		s.audit.record(ctx, s.audit.event(events.TypeUserCreated, params.Principal.UserID, persistence.OutcomeSuccess, ComponentAuth,
			fmt.Sprintf("created account %s", user.ID)))
	}
	return
}

// EnsureBootstrapAdmin creates an administrator account when none exists under
// email. It reports whether an account was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (created bool, err error) {
	if s == nil || s.users == nil {
		return false, fmt.Errorf("AuthService is not configured")
	}
	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "EnsureBootstrapAdmin", "email", email)

	_, err = s.users.GetUser(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, persistence.ErrNotFound):
		return false, &StorageError{Op: "load user", Err: err}
	}

	if _, err = s.createUser(ctx, email, "Administrator", password, true); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		logger.ErrorContext(ctx, "failed to create bootstrap administrator", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}
	logger.InfoContext(ctx, "bootstrap administrator created")
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, email, displayName, password string, isAdmin bool) (User, error) {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, perr := mail.ParseAddress(email); perr != nil {
		vErr.add("email", "email is not a valid address")
	}
	if len(password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email
	}
	hash, err := s.hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	stored := persistence.User{
		ID:           email,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, stored); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return User{}, ErrAlreadyExists
		}
		return User{}, &StorageError{Op: "create user", Err: err}
	}
	return toUser(stored), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUser(u persistence.User) User {
	return User{ID: u.ID, DisplayName: u.DisplayName, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
}
