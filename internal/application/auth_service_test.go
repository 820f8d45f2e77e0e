package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
)

func plainHash(password string) (string, error) { return "plain:" + password, nil }

func plainVerify(hashed, password string) error {
	if hashed != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type authHarness struct {
	store *memoryStore
	sink  *recordingSink
	clock *fakeClock
	svc   *AuthService
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	store := newMemoryStore()
	clock := newFakeClock(on(9, 0))
	tokens, err := NewTokenIssuer([]byte("test-secret"), time.Hour, clock.Now)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	sink := &recordingSink{}
	svc := NewAuthService(AuthServiceDeps{
		Users:  store,
		Audit:  store,
		Sink:   sink,
		Tokens: tokens,
		Hash:   plainHash,
		Verify: plainVerify,
		Now:    clock.Now,
		Logger: discardLogger(),
	})
	store.users[alice] = persistence.User{ID: alice, DisplayName: "Alice", PasswordHash: "plain:correct horse"}
	return &authHarness{store: store, sink: sink, clock: clock, svc: svc}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues a token for valid credentials", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t)
		result, err := h.svc.Login(context.Background(), LoginParams{Email: "  Alice@Example.com ", Password: "correct horse"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if result.User.ID != alice || result.Token == "" {
			t.Fatalf("unexpected result %#v", result)
		}
		if !result.ExpiresAt.Equal(on(10, 0)) {
			t.Fatalf("expected expiry one hour out, got %v", result.ExpiresAt)
		}
		principal, err := h.svc.Authenticate(context.Background(), result.Token)
		if err != nil || principal.UserID != alice || principal.IsAdmin {
			t.Fatalf("Authenticate = %#v, %v", principal, err)
		}
		entries := h.store.auditEntries()
		if len(entries) != 1 || entries[0].Outcome != persistence.OutcomeSuccess || entries[0].Component != ComponentAuth {
			t.Fatalf("expected login audit, got %#v", entries)
		}
	})

	t.Run("rejects bad credentials uniformly", func(t *testing.T) {
		t.Parallel()
		tests := []LoginParams{
			{Email: alice, Password: "wrong"},
			{Email: "nobody@example.com", Password: "correct horse"},
			{Email: "", Password: "x"},
		}
		for _, params := range tests {
			h := newAuthHarness(t)
			if _, err := h.svc.Login(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login(%q) expected ErrInvalidCredentials, got %v", params.Email, err)
			}
		}
	})

	t.Run("failed login is audited", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t)
		_, _ = h.svc.Login(context.Background(), LoginParams{Email: alice, Password: "wrong"})
		entries := h.store.auditEntries()
		if len(entries) != 1 || entries[0].Outcome != persistence.OutcomeFailure || entries[0].UserID != alice {
			t.Fatalf("expected failure audit, got %#v", entries)
		}
		if got := h.sink.types(); len(got) != 1 || got[0] != events.TypeUserLogin {
			t.Fatalf("expected login event, got %v", got)
		}
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()
	h := newAuthHarness(t)

	if _, err := h.svc.Authenticate(context.Background(), " "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
	if _, err := h.svc.Authenticate(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	result, err := h.svc.Login(context.Background(), LoginParams{Email: alice, Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	h.clock.Set(on(10, 0).Add(time.Second))
	if _, err := h.svc.Authenticate(context.Background(), result.Token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestAuthService_CreateUser(t *testing.T) {
	t.Parallel()
	admin := Principal{UserID: "root@example.com", IsAdmin: true}

	t.Run("admin creates an account", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t)
		user, err := h.svc.CreateUser(context.Background(), CreateUserParams{
			Principal: admin,
			Email:     " Bob@Example.com",
			Password:  "long enough",
		})
		if err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		if user.ID != bob || user.DisplayName != bob || !user.CreatedAt.Equal(on(9, 0)) {
			t.Fatalf("unexpected user %#v", user)
		}
		if stored := h.store.users[bob]; stored.PasswordHash != "plain:long enough" {
			t.Fatalf("password was not hashed through the hasher: %q", stored.PasswordHash)
		}
		if _, err := h.svc.Login(context.Background(), LoginParams{Email: bob, Password: "long enough"}); err != nil {
			t.Fatalf("new user cannot log in: %v", err)
		}

		_, err = h.svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Email: bob, Password: "long enough"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("validation and access", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t)
		if _, err := h.svc.CreateUser(context.Background(), CreateUserParams{Principal: Principal{UserID: alice}, Email: bob, Password: "long enough"}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		_, err := h.svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Email: "not an email", Password: "short"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["email"]; !ok {
			t.Fatalf("expected email field error, got %#v", vErr.FieldErrors)
		}
		if msg := vErr.FieldErrors["password"]; !strings.Contains(msg, "8") {
			t.Fatalf("expected password length error, got %q", msg)
		}
	})
}

func TestAuthService_EnsureBootstrapAdmin(t *testing.T) {
	t.Parallel()
	h := newAuthHarness(t)

	created, err := h.svc.EnsureBootstrapAdmin(context.Background(), "Admin@Example.com", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("EnsureBootstrapAdmin = %v, %v", created, err)
	}
	if !h.store.users["admin@example.com"].IsAdmin {
		t.Fatalf("bootstrap account must be an administrator")
	}
	created, err = h.svc.EnsureBootstrapAdmin(context.Background(), "admin@example.com", "another-pass")
	if err != nil || created {
		t.Fatalf("second EnsureBootstrapAdmin = %v, %v; want false, nil", created, err)
	}
}
