package postgres

import (
	"context"

	"github.com/example/desk-booking/internal/persistence"
)

// MostBookedDesk returns the desk with the most bookings in any status, ties
// broken by the lowest desk code.
func (s *Storage) MostBookedDesk(ctx context.Context) (persistence.DeskUsage, error) {
	var row struct {
		deskView
		Total int
	}
	res := s.desks(ctx).
		Select("d.desk_id, d.desk_code, o.office_name, f.floor_name, s.sector_name, d.local_id, d.description, COUNT(b.booking_id) AS total").
		Joins("JOIN bookings b ON b.desk_code = d.desk_code").
		Group("d.desk_id, o.office_name, f.floor_name, s.sector_name").
		Order("total DESC, d.desk_code ASC").
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return persistence.DeskUsage{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.DeskUsage{}, persistence.ErrNotFound
	}
	return persistence.DeskUsage{Desk: row.toDomain(), Bookings: row.Total}, nil
}

// MostFrequentUser returns the user with the most bookings, ties broken by the
// lowest user id.
func (s *Storage) MostFrequentUser(ctx context.Context) (persistence.UserUsage, error) {
	var row struct {
		UserID string
		Total  int
	}
	res := s.db.WithContext(ctx).
		Table("bookings").
		Select("user_id, COUNT(*) AS total").
		Group("user_id").
		Order("total DESC, user_id ASC").
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return persistence.UserUsage{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.UserUsage{}, persistence.ErrNotFound
	}
	return persistence.UserUsage{UserID: row.UserID, Bookings: row.Total}, nil
}
