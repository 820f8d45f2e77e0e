package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/postgres"
	"github.com/example/desk-booking/internal/scheduler"
	"github.com/example/desk-booking/internal/testfixtures"
)

// openStore connects to the database named by DESKBOOK_TEST_POSTGRES_DSN. Each
// test uses its own desk codes and users, so the schema is shared between runs.
func openStore(t *testing.T) *postgres.Storage {
	t.Helper()
	dsn := os.Getenv("DESKBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DESKBOOK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := postgres.Open(ctx, postgres.DefaultConfig(dsn), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return store
}

func seed(t *testing.T, store *postgres.Storage) (testfixtures.UserFixture, scheduler.Desk) {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()
	user := testfixtures.NewUserFixture(testfixtures.WithUserID(fmt.Sprintf("pg-%d@example.com", suffix)))
	if err := store.CreateUser(ctx, user.Persistence()); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	desk, err := store.CreateDesk(ctx, testfixtures.NewDeskFixture(
		testfixtures.WithDeskCode(fmt.Sprintf("PG-%d", suffix)),
		testfixtures.WithDeskLocation("PG", "1", fmt.Sprintf("S%d", suffix), 1),
	))
	if err != nil {
		t.Fatalf("CreateDesk returned error: %v", err)
	}
	return user, desk
}

func TestPostgresOverlapAndAdjacency(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	user, desk := seed(t, store)
	on := testfixtures.On

	first := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithBookingID(desk.Code+"-1"))
	if err := store.CreateBooking(ctx, first, nil); err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}

	overlap := testfixtures.NewBookingFixture(user.ID, desk.Code,
		testfixtures.WithBookingID(desk.Code+"-2"), testfixtures.WithInterval(on(9, 30), on(9, 45)))
	if err := store.CreateBooking(ctx, overlap, nil); !errors.Is(err, persistence.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	adjacent := testfixtures.NewBookingFixture(user.ID, desk.Code,
		testfixtures.WithBookingID(desk.Code+"-3"), testfixtures.WithInterval(on(10, 0), on(11, 0)))
	if err := store.CreateBooking(ctx, adjacent, nil); err != nil {
		t.Fatalf("adjacent booking rejected: %v", err)
	}

	if _, err := store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: first.ID, From: scheduler.StatusPending, To: scheduler.StatusCanceled, At: on(8, 0),
	}, nil); err != nil {
		t.Fatalf("cancel returned error: %v", err)
	}
	if err := store.CreateBooking(ctx, overlap, nil); err != nil {
		t.Fatalf("interval not freed by cancel: %v", err)
	}
}

func TestPostgresConcurrentCreates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	user, desk := seed(t, store)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithBookingID(fmt.Sprintf("%s-c%d", desk.Code, i)))
			err := store.CreateBooking(ctx, b, nil)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, persistence.ErrOverlap) {
				t.Errorf("attempt %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", success)
	}
}
