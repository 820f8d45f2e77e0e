package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

func bookings(db *gorm.DB) *gorm.DB {
	return db.Table("bookings b").
		Select("b.*, st.status_name").
		Joins("JOIN statuses st ON st.status_id = b.status_id")
}

// lockDesk serializes writers of one desk until the transaction ends.
func lockDesk(tx *gorm.DB, deskCode string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", deskCode).Error
}

// CreateBooking inserts booking under the desk's advisory lock after re-checking
// for overlaps. The exclusion constraint rejects anything that slips past.
func (s *Storage) CreateBooking(ctx context.Context, booking scheduler.Booking, audit *persistence.AuditEntry) error {
	if booking.ID == "" || !scheduler.ValidInterval(booking.Start, booking.End) {
		return persistence.ErrConstraintViolation
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDesk(tx, booking.DeskCode); err != nil {
			return err
		}
		statusID, err := resolveStatusID(tx, booking.Status)
		if err != nil {
			return err
		}
		if booking.Status.OccupiesDesk() {
			var conflicting []string
			err := tx.Table("bookings b").
				Joins("JOIN statuses st ON st.status_id = b.status_id").
				Where("b.desk_code = ? AND b.booking_id <> ?", booking.DeskCode, booking.ID).
				Where("st.status_name <> ?", string(scheduler.StatusCanceled)).
				Where("b.start_at < ? AND b.end_at > ?", booking.End.UTC(), booking.Start.UTC()).
				Order("b.start_at").
				Limit(1).
				Pluck("b.booking_id", &conflicting).Error
			if err != nil {
				return err
			}
			if len(conflicting) > 0 {
				return fmt.Errorf("%w: desk %s already held by booking %s", persistence.ErrOverlap, booking.DeskCode, conflicting[0])
			}
		}

		row := bookingRow{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			DeskCode:  booking.DeskCode,
			StartAt:   booking.Start.UTC(),
			EndAt:     booking.End.UTC(),
			StatusID:  statusID,
			CreatedAt: booking.CreatedAt.UTC(),
			UpdatedAt: booking.UpdatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		s.recordAuditTx(ctx, tx, audit)
		return nil
	})
	return mapError(err)
}

// GetBooking loads a single booking.
func (s *Storage) GetBooking(ctx context.Context, id string) (scheduler.Booking, error) {
	return getBooking(s.db.WithContext(ctx), id)
}

func getBooking(db *gorm.DB, id string) (scheduler.Booking, error) {
	var view bookingView
	res := bookings(db).Where("b.booking_id = ?", id).Limit(1).Scan(&view)
	if res.Error != nil {
		return scheduler.Booking{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	return view.toDomain()
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]scheduler.Booking, error) {
	q := bookings(s.db.WithContext(ctx))
	if filter.UserID != "" {
		q = q.Where("b.user_id = ?", filter.UserID)
	}
	if filter.DeskCode != "" {
		q = q.Where("b.desk_code = ?", filter.DeskCode)
	}
	if len(filter.Statuses) > 0 {
		names := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			names[i] = string(st)
		}
		q = q.Where("st.status_name IN ?", names)
	}
	if filter.StartsBefore != nil {
		q = q.Where("b.start_at < ?", filter.StartsBefore.UTC())
	}
	if filter.EndsAfter != nil {
		q = q.Where("b.end_at > ?", filter.EndsAfter.UTC())
	}
	if filter.ExcludeID != "" {
		q = q.Where("b.booking_id <> ?", filter.ExcludeID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return scanBookings(q.Order("b.start_at, b.booking_id"))
}

// ChangeStatus moves a booking from change.From to change.To. It fails with
// ErrStatusMismatch when the stored status is no longer change.From.
func (s *Storage) ChangeStatus(ctx context.Context, change persistence.StatusChange, audit *persistence.AuditEntry) (scheduler.Booking, error) {
	if !change.From.CanTransitionTo(change.To) {
		return scheduler.Booking{}, fmt.Errorf("%w: %s -> %s", persistence.ErrConstraintViolation, change.From, change.To)
	}

	var updated scheduler.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fromID, err := resolveStatusID(tx, change.From)
		if err != nil {
			return err
		}
		toID, err := resolveStatusID(tx, change.To)
		if err != nil {
			return err
		}

		res := tx.Model(&bookingRow{}).
			Where("booking_id = ? AND status_id = ?", change.BookingID, fromID).
			Updates(map[string]any{"status_id": toID, "updated_at": change.At.UTC()})
		if res.Error != nil {
			return res.Error
		}

		current, err := getBooking(tx, change.BookingID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: booking %s is %s, expected %s", persistence.ErrStatusMismatch, change.BookingID, current.Status, change.From)
		}
		updated = current
		s.recordAuditTx(ctx, tx, audit)
		return nil
	})
	if err != nil {
		return scheduler.Booking{}, mapError(err)
	}
	return updated, nil
}

// ListSweepCandidates returns the bookings a sweep at now may transition.
func (s *Storage) ListSweepCandidates(ctx context.Context, now, noShowCutoff time.Time) ([]scheduler.Booking, error) {
	q := bookings(s.db.WithContext(ctx)).
		Where("(st.status_name = ? AND (b.start_at < ? OR b.end_at <= ?)) OR (st.status_name = ? AND b.end_at <= ?)",
			string(scheduler.StatusPending), noShowCutoff.UTC(), now.UTC(),
			string(scheduler.StatusActive), now.UTC()).
		Order("b.start_at, b.booking_id")
	return scanBookings(q)
}

func scanBookings(q *gorm.DB) ([]scheduler.Booking, error) {
	var views []bookingView
	if err := q.Scan(&views).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]scheduler.Booking, 0, len(views))
	for _, v := range views {
		b, err := v.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// recordAuditTx writes audit in a nested transaction, which gorm runs as a
// savepoint, so a failed insert never aborts the booking change.
func (s *Storage) recordAuditTx(ctx context.Context, tx *gorm.DB, audit *persistence.AuditEntry) {
	if audit == nil {
		return
	}
	row := newLogRow(*audit)
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&row).Error
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit entry dropped",
			"component", audit.Component,
			"user_id", audit.UserID,
			"error", err,
		)
	}
}
