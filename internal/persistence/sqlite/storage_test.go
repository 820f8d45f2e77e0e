package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/sqlite"
	"github.com/example/desk-booking/internal/scheduler"
	"github.com/example/desk-booking/internal/testfixtures"
)

var on = testfixtures.On

func mapError(err error) error {
	return sqlite.NewErrorMapper().MapError(err)
}

func TestCatalogBrowse(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	h.SeedDesk(testfixtures.WithDeskCode("HQ-1-B-002"), testfixtures.WithDeskLocation("HQ", "1", "B", 2))
	h.SeedDesk(testfixtures.WithDeskCode("HQ-1-A-001"), testfixtures.WithDeskLocation("HQ", "1", "A", 1))
	h.SeedDesk(testfixtures.WithDeskCode("WAW-3-A-001"), testfixtures.WithDeskLocation("WAW", "3", "A", 1))

	offices, err := h.Store.ListOffices(ctx)
	if err != nil || len(offices) != 2 || offices[0] != "HQ" || offices[1] != "WAW" {
		t.Fatalf("ListOffices = %v, %v", offices, err)
	}

	sectors, err := h.Store.ListSectors(ctx, "HQ", "1")
	if err != nil || len(sectors) != 2 || sectors[0] != "A" {
		t.Fatalf("ListSectors = %v, %v", sectors, err)
	}

	floors, err := h.Store.ListFloors(ctx, "nowhere")
	if err != nil || floors == nil || len(floors) != 0 {
		t.Fatalf("expected empty non-nil floors, got %#v, %v", floors, err)
	}

	desks, err := h.Store.ListDesks(ctx, persistence.DeskFilter{Office: "HQ", Floor: "1"})
	if err != nil {
		t.Fatalf("ListDesks returned error: %v", err)
	}
	if len(desks) != 2 || desks[0].Code != "HQ-1-A-001" || desks[1].Code != "HQ-1-B-002" {
		t.Fatalf("unexpected desk order %+v", desks)
	}

	exists, err := h.Store.DeskExists(ctx, "HQ-1-A-001")
	if err != nil || !exists {
		t.Fatalf("DeskExists = %v, %v", exists, err)
	}
	if exists, _ := h.Store.DeskExists(ctx, "missing"); exists {
		t.Fatalf("unknown desk reported as existing")
	}

	desk, err := h.Store.GetDesk(ctx, "WAW-3-A-001")
	if err != nil || desk.Location.Office != "WAW" || desk.Location.Floor != "3" {
		t.Fatalf("GetDesk = %+v, %v", desk, err)
	}
	if _, err := h.Store.GetDesk(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDeskRejectsDuplicates(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	h.SeedDesk(testfixtures.WithDeskCode("D1"), testfixtures.WithDeskLocation("HQ", "1", "A", 1))

	_, err := h.Store.CreateDesk(ctx, testfixtures.NewDeskFixture(testfixtures.WithDeskCode("D1")))
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("duplicate code: expected ErrDuplicate, got %v", err)
	}
	_, err = h.Store.CreateDesk(ctx, testfixtures.NewDeskFixture(
		testfixtures.WithDeskCode("D2"), testfixtures.WithDeskLocation("HQ", "1", "A", 1)))
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("duplicate location: expected ErrDuplicate, got %v", err)
	}
}

func TestResolveStatusID(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	for i, status := range scheduler.AllStatuses() {
		id, err := h.Store.ResolveStatusID(context.Background(), status)
		if err != nil || id != int64(i+1) {
			t.Fatalf("ResolveStatusID(%s) = %d, %v", status, id, err)
		}
	}
	if _, err := h.Store.ResolveStatusID(context.Background(), scheduler.Status("Archived")); !errors.Is(err, persistence.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestCreateBookingOverlap(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser()
	desk := h.SeedDesk()
	h.SeedBooking(user.ID, desk.Code, testfixtures.WithInterval(on(9, 0), on(10, 0)))

	t.Run("overlap is rejected", func(t *testing.T) {
		b := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithInterval(on(9, 30), on(9, 45)))
		if err := h.Store.CreateBooking(ctx, b, nil); !errors.Is(err, persistence.ErrOverlap) {
			t.Fatalf("expected ErrOverlap, got %v", err)
		}
	})

	t.Run("adjacent is accepted", func(t *testing.T) {
		b := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithInterval(on(10, 0), on(11, 0)))
		if err := h.Store.CreateBooking(ctx, b, nil); err != nil {
			t.Fatalf("adjacent booking rejected: %v", err)
		}
	})

	t.Run("inverted interval is rejected", func(t *testing.T) {
		b := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithInterval(on(15, 0), on(14, 0)))
		if err := h.Store.CreateBooking(ctx, b, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("unknown desk violates foreign key", func(t *testing.T) {
		b := testfixtures.NewBookingFixture(user.ID, "missing", testfixtures.WithInterval(on(12, 0), on(13, 0)))
		if err := h.Store.CreateBooking(ctx, b, nil); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})
}

func TestOverlapTriggerRejectsRawInsert(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	user := h.SeedUser()
	desk := h.SeedDesk()
	h.SeedBooking(user.ID, desk.Code)

	db := openRaw(t, h.Path)
	_, err := db.Exec(`
		INSERT INTO bookings (booking_id, user_id, desk_code, start_at, end_at, status_id, created_at, updated_at)
		VALUES ('raw', ?, ?, '2024-03-04T09:30:00.000000000Z', '2024-03-04T09:45:00.000000000Z', 1, '', '')`,
		user.ID, desk.Code)
	if err == nil {
		t.Fatalf("expected trigger to reject overlapping insert")
	}
	if mapped := mapError(err); !errors.Is(mapped, persistence.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", mapped)
	}
}

func TestChangeStatus(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser()
	desk := h.SeedDesk()
	booking := h.SeedBooking(user.ID, desk.Code)

	at := on(9, 5)
	updated, err := h.Store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: booking.ID, From: scheduler.StatusPending, To: scheduler.StatusActive, At: at,
	}, nil)
	if err != nil {
		t.Fatalf("ChangeStatus returned error: %v", err)
	}
	if updated.Status != scheduler.StatusActive || !updated.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected booking after check-in: %+v", updated)
	}

	_, err = h.Store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: booking.ID, From: scheduler.StatusPending, To: scheduler.StatusCanceled, At: at,
	}, nil)
	if !errors.Is(err, persistence.ErrStatusMismatch) {
		t.Fatalf("stale compare-and-set: expected ErrStatusMismatch, got %v", err)
	}

	_, err = h.Store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: "missing", From: scheduler.StatusPending, To: scheduler.StatusCanceled, At: at,
	}, nil)
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = h.Store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: booking.ID, From: scheduler.StatusCanceled, To: scheduler.StatusActive, At: at,
	}, nil)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("illegal transition: expected ErrConstraintViolation, got %v", err)
	}
}

func TestCancelFreesInterval(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser()
	desk := h.SeedDesk()
	booking := h.SeedBooking(user.ID, desk.Code)

	if _, err := h.Store.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: booking.ID, From: scheduler.StatusPending, To: scheduler.StatusCanceled, At: on(8, 0),
	}, nil); err != nil {
		t.Fatalf("cancel returned error: %v", err)
	}

	again := testfixtures.NewBookingFixture(user.ID, desk.Code)
	if err := h.Store.CreateBooking(ctx, again, nil); err != nil {
		t.Fatalf("identical interval after cancel rejected: %v", err)
	}
}

func TestTerminalBookingsAreImmutable(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	user := h.SeedUser()
	desk := h.SeedDesk()
	booking := h.SeedBooking(user.ID, desk.Code, testfixtures.WithStatus(scheduler.StatusCompleted))

	db := openRaw(t, h.Path)
	_, err := db.Exec(`UPDATE bookings SET end_at = '2024-03-04T11:00:00.000000000Z' WHERE booking_id = ?`, booking.ID)
	if mapped := mapError(err); !errors.Is(mapped, persistence.ErrStatusMismatch) {
		t.Fatalf("expected terminal guard, got %v", err)
	}
}

func TestListBookingsAndSweepCandidates(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	alice := h.SeedUser()
	bob := h.SeedUser()
	desk := h.SeedDesk()
	other := h.SeedDesk()

	noShow := h.SeedBooking(alice.ID, desk.Code, testfixtures.WithInterval(on(8, 0), on(12, 0)))
	finished := h.SeedBooking(bob.ID, other.Code, testfixtures.WithInterval(on(7, 0), on(8, 0)), testfixtures.WithStatus(scheduler.StatusActive))
	h.SeedBooking(alice.ID, desk.Code, testfixtures.WithInterval(on(13, 0), on(14, 0)))
	h.SeedBooking(bob.ID, other.Code, testfixtures.WithInterval(on(9, 0), on(10, 0)), testfixtures.WithStatus(scheduler.StatusActive))

	mine, err := h.Store.ListBookings(ctx, persistence.BookingFilter{UserID: alice.ID})
	if err != nil || len(mine) != 2 || mine[0].ID != noShow.ID {
		t.Fatalf("ListBookings(user) = %+v, %v", mine, err)
	}

	active, err := h.Store.ListBookings(ctx, persistence.BookingFilter{Statuses: []scheduler.Status{scheduler.StatusActive}, Limit: 1})
	if err != nil || len(active) != 1 || active[0].ID != finished.ID {
		t.Fatalf("ListBookings(active, limit 1) = %+v, %v", active, err)
	}

	now := on(9, 0)
	candidates, err := h.Store.ListSweepCandidates(ctx, now, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("ListSweepCandidates returned error: %v", err)
	}
	if len(candidates) != 2 || candidates[0].ID != finished.ID || candidates[1].ID != noShow.ID {
		t.Fatalf("unexpected sweep candidates %+v", candidates)
	}
}

func TestReports(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	if _, err := h.Store.MostBookedDesk(ctx); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}
	if _, err := h.Store.MostFrequentUser(ctx); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	zed := h.SeedUser(testfixtures.WithUserID("zed@example.com"))
	amy := h.SeedUser(testfixtures.WithUserID("amy@example.com"))
	deskB := h.SeedDesk(testfixtures.WithDeskCode("B-1"))
	deskA := h.SeedDesk(testfixtures.WithDeskCode("A-1"))

	h.SeedBooking(zed.ID, deskB.Code, testfixtures.WithInterval(on(9, 0), on(10, 0)))
	h.SeedBooking(amy.ID, deskA.Code, testfixtures.WithInterval(on(9, 0), on(10, 0)), testfixtures.WithStatus(scheduler.StatusCanceled))

	desk, err := h.Store.MostBookedDesk(ctx)
	if err != nil || desk.Desk.Code != "A-1" || desk.Bookings != 1 || desk.Desk.Location.Office != "HQ" {
		t.Fatalf("tie should go to the lowest desk code, got %+v, %v", desk, err)
	}
	user, err := h.Store.MostFrequentUser(ctx)
	if err != nil || user.UserID != "amy@example.com" {
		t.Fatalf("tie should go to the lowest user id, got %+v, %v", user, err)
	}

	h.SeedBooking(zed.ID, deskB.Code, testfixtures.WithInterval(on(11, 0), on(12, 0)))
	user, err = h.Store.MostFrequentUser(ctx)
	if err != nil || user.UserID != zed.ID || user.Bookings != 2 {
		t.Fatalf("MostFrequentUser = %+v, %v", user, err)
	}
}

func TestAuditRecordedWithBooking(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser()
	desk := h.SeedDesk()

	booking := testfixtures.NewBookingFixture(user.ID, desk.Code)
	audit := &persistence.AuditEntry{
		UserID:      user.ID,
		Outcome:     persistence.OutcomeSuccess,
		Component:   "Booking",
		Description: "created",
		CreatedAt:   on(8, 0),
	}
	if err := h.Store.CreateBooking(ctx, booking, audit); err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}

	bad := testfixtures.NewBookingFixture(user.ID, desk.Code, testfixtures.WithInterval(on(11, 0), on(12, 0)))
	invalid := &persistence.AuditEntry{UserID: user.ID, Outcome: "Maybe", Component: "Booking", Description: "bad outcome", CreatedAt: on(8, 1)}
	if err := h.Store.CreateBooking(ctx, bad, invalid); err != nil {
		t.Fatalf("a failing audit insert must not abort the booking: %v", err)
	}
	if _, err := h.Store.GetBooking(ctx, bad.ID); err != nil {
		t.Fatalf("booking with dropped audit not stored: %v", err)
	}

	if err := h.Store.RecordAudit(ctx, persistence.AuditEntry{
		UserID: user.ID, Outcome: persistence.OutcomeFailure, Component: "Booking", Description: "conflict", CreatedAt: on(8, 2),
	}); err != nil {
		t.Fatalf("RecordAudit returned error: %v", err)
	}

	entries, err := h.Store.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].Outcome != persistence.OutcomeFailure || entries[1].Description != "created" {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
}

func TestUsers(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := testfixtures.NewUserFixture(testfixtures.WithUserID("Mixed.Case@Example.com"), testfixtures.WithUserAdmin(true))
	if err := h.Store.CreateUser(ctx, user.Persistence()); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	got, err := h.Store.GetUser(ctx, "mixed.case@example.com")
	if err != nil || !got.IsAdmin || got.DisplayName != user.DisplayName {
		t.Fatalf("GetUser = %+v, %v", got, err)
	}
	if err := h.Store.CreateUser(ctx, user.Persistence()); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := h.Store.GetUser(ctx, "nobody@example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open raw connection: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
