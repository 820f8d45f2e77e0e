package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

const bookingSelect = `
	SELECT b.booking_id, b.user_id, b.desk_code, b.start_at, b.end_at, st.status_name, b.created_at, b.updated_at
	FROM bookings b
	JOIN statuses st ON st.status_id = b.status_id`

// CreateBooking inserts booking after re-checking for overlaps inside the same
// write transaction. The overlap triggers reject anything that slips past.
func (s *Storage) CreateBooking(ctx context.Context, booking scheduler.Booking, audit *persistence.AuditEntry) error {
	if booking.ID == "" || !scheduler.ValidInterval(booking.Start, booking.End) {
		return persistence.ErrConstraintViolation
	}
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			statusID, err := lookupStatusID(ctx, tx, booking.Status)
			if err != nil {
				return err
			}
			if booking.Status.OccupiesDesk() {
				conflicting, err := firstOverlap(ctx, tx, booking.DeskCode, booking.ID, booking.Start, booking.End)
				if err != nil {
					return err
				}
				if conflicting != "" {
					return fmt.Errorf("%w: desk %s already held by booking %s", persistence.ErrOverlap, booking.DeskCode, conflicting)
				}
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO bookings (booking_id, user_id, desk_code, start_at, end_at, status_id, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				booking.ID,
				booking.UserID,
				booking.DeskCode,
				formatTime(booking.Start),
				formatTime(booking.End),
				statusID,
				formatTime(booking.CreatedAt),
				formatTime(booking.UpdatedAt),
			)
			if err != nil {
				return err
			}
			s.recordAuditTx(ctx, tx, audit)
			return nil
		})
	})
	return s.mapper.MapError(err)
}

// GetBooking loads a single booking.
func (s *Storage) GetBooking(ctx context.Context, id string) (scheduler.Booking, error) {
	booking, err := scanBooking(s.pool.DB().QueryRowContext(ctx, bookingSelect+` WHERE b.booking_id = ?`, id))
	if err != nil {
		return scheduler.Booking{}, s.mapper.MapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]scheduler.Booking, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		conditions = append(conditions, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DeskCode != "" {
		conditions = append(conditions, "b.desk_code = ?")
		args = append(args, filter.DeskCode)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "st.status_name IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "b.start_at < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "b.end_at > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "b.booking_id <> ?")
		args = append(args, filter.ExcludeID)
	}

	query := bookingSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.start_at, b.booking_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.queryBookings(ctx, query, args...)
}

// ChangeStatus moves a booking from change.From to change.To. It fails with
// ErrStatusMismatch when the stored status is no longer change.From.
func (s *Storage) ChangeStatus(ctx context.Context, change persistence.StatusChange, audit *persistence.AuditEntry) (scheduler.Booking, error) {
	if !change.From.CanTransitionTo(change.To) {
		return scheduler.Booking{}, fmt.Errorf("%w: %s -> %s", persistence.ErrConstraintViolation, change.From, change.To)
	}

	var updated scheduler.Booking
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				UPDATE bookings
				SET status_id = (SELECT status_id FROM statuses WHERE status_name = ?), updated_at = ?
				WHERE booking_id = ?
				  AND status_id = (SELECT status_id FROM statuses WHERE status_name = ?)`,
				string(change.To), formatTime(change.At), change.BookingID, string(change.From))
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}

			current, err := scanBooking(tx.QueryRowContext(ctx, bookingSelect+` WHERE b.booking_id = ?`, change.BookingID))
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: booking %s is %s, expected %s", persistence.ErrStatusMismatch, change.BookingID, current.Status, change.From)
			}
			updated = current
			s.recordAuditTx(ctx, tx, audit)
			return nil
		})
	})
	if err != nil {
		return scheduler.Booking{}, s.mapper.MapError(err)
	}
	return updated, nil
}

// ListSweepCandidates returns the bookings a sweep at now may transition: pending
// bookings that started before noShowCutoff or have ended, and active bookings
// that have ended.
func (s *Storage) ListSweepCandidates(ctx context.Context, now, noShowCutoff time.Time) ([]scheduler.Booking, error) {
	nowText := formatTime(now)
	return s.queryBookings(ctx, bookingSelect+`
		WHERE (st.status_name = 'Pending' AND (b.start_at < ? OR b.end_at <= ?))
		   OR (st.status_name = 'Active' AND b.end_at <= ?)
		ORDER BY b.start_at, b.booking_id`,
		formatTime(noShowCutoff), nowText, nowText)
}

func (s *Storage) queryBookings(ctx context.Context, query string, args ...any) ([]scheduler.Booking, error) {
	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []scheduler.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		bookings = append(bookings, b)
	}
	return bookings, s.mapper.MapError(rows.Err())
}

// recordAuditTx writes audit under a savepoint so that a failed audit insert is
// rolled back on its own and never aborts the surrounding booking change.
func (s *Storage) recordAuditTx(ctx context.Context, tx *sql.Tx, audit *persistence.AuditEntry) {
	if audit == nil {
		return
	}
	err := withSavepoint(ctx, tx, "audit_entry", func(tx *sql.Tx) error {
		return insertAudit(ctx, tx, *audit)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit entry dropped",
			"component", audit.Component,
			"user_id", audit.UserID,
			"error", err,
		)
	}
}

func lookupStatusID(ctx context.Context, tx *sql.Tx, status scheduler.Status) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT status_id FROM statuses WHERE status_name = ?`, string(status)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, persistence.ErrUnknownStatus
	}
	return id, err
}

func firstOverlap(ctx context.Context, tx *sql.Tx, deskCode, excludeID string, start, end time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT b.booking_id
		FROM bookings b
		JOIN statuses st ON st.status_id = b.status_id
		WHERE b.desk_code = ?
		  AND b.booking_id <> ?
		  AND st.status_name <> 'Canceled'
		  AND b.start_at < ?
		  AND b.end_at > ?
		ORDER BY b.start_at
		LIMIT 1`,
		deskCode, excludeID, formatTime(end), formatTime(start)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func scanBooking(row rowScanner) (scheduler.Booking, error) {
	var b scheduler.Booking
	var start, end, status, created, updated string
	if err := row.Scan(&b.ID, &b.UserID, &b.DeskCode, &start, &end, &status, &created, &updated); err != nil {
		return scheduler.Booking{}, err
	}
	var err error
	if b.Status, err = scheduler.ParseStatus(status); err != nil {
		return scheduler.Booking{}, err
	}
	if b.Start, err = parseTime(start); err != nil {
		return scheduler.Booking{}, err
	}
	if b.End, err = parseTime(end); err != nil {
		return scheduler.Booking{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return scheduler.Booking{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return scheduler.Booking{}, err
	}
	return b, nil
}
