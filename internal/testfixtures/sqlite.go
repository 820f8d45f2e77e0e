package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/desk-booking/internal/persistence/sqlite"
	"github.com/example/desk-booking/internal/persistence/sqlite/migration"
	"github.com/example/desk-booking/internal/scheduler"
)

// SQLiteHarness is a migrated SQLite store in a temporary directory.
type SQLiteHarness struct {
	Store *sqlite.Storage
	Path  string

	tb testing.TB
}

// NewSQLiteHarness opens and migrates a fresh database. It is closed when the
// test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "deskbooking.db")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	store, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	return &SQLiteHarness{Store: store, Path: path, tb: tb}
}

// SeedUser stores a user and returns it.
func (h *SQLiteHarness) SeedUser(opts ...UserOption) UserFixture {
	h.tb.Helper()
	user := NewUserFixture(opts...)
	if err := h.Store.CreateUser(context.Background(), user.Persistence()); err != nil {
		h.tb.Fatalf("seed user %s: %v", user.ID, err)
	}
	return user
}

// SeedDesk stores a desk and returns it with its database id.
func (h *SQLiteHarness) SeedDesk(opts ...DeskOption) scheduler.Desk {
	h.tb.Helper()
	desk, err := h.Store.CreateDesk(context.Background(), NewDeskFixture(opts...))
	if err != nil {
		h.tb.Fatalf("seed desk: %v", err)
	}
	return desk
}

// SeedBooking stores a booking directly, bypassing the lifecycle service.
func (h *SQLiteHarness) SeedBooking(userID, deskCode string, opts ...BookingOption) scheduler.Booking {
	h.tb.Helper()
	booking := NewBookingFixture(userID, deskCode, opts...)
	if err := h.Store.CreateBooking(context.Background(), booking, nil); err != nil {
		h.tb.Fatalf("seed booking %s: %v", booking.ID, err)
	}
	return booking
}
