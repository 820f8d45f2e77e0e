package sqlite

import (
	"context"

	"github.com/example/desk-booking/internal/persistence"
)

// MostBookedDesk returns the desk with the most bookings in any status, ties
// broken by the lowest desk code.
func (s *Storage) MostBookedDesk(ctx context.Context) (persistence.DeskUsage, error) {
	var usage persistence.DeskUsage
	row := s.pool.DB().QueryRowContext(ctx, `
		SELECT d.desk_id, d.desk_code, o.office_name, f.floor_name, s.sector_name, d.local_id, d.description, COUNT(b.booking_id) AS total
		FROM bookings b
		JOIN desks d ON d.desk_code = b.desk_code
		JOIN sectors s ON s.sector_id = d.sector_id
		JOIN floors f ON f.floor_id = s.floor_id
		JOIN offices o ON o.office_id = f.office_id
		GROUP BY d.desk_id
		ORDER BY total DESC, d.desk_code ASC
		LIMIT 1`)
	err := row.Scan(
		&usage.Desk.ID,
		&usage.Desk.Code,
		&usage.Desk.Location.Office,
		&usage.Desk.Location.Floor,
		&usage.Desk.Location.Sector,
		&usage.Desk.Location.LocalID,
		&usage.Desk.Description,
		&usage.Bookings,
	)
	if err != nil {
		return persistence.DeskUsage{}, s.mapper.MapError(err)
	}
	return usage, nil
}

// MostFrequentUser returns the user with the most bookings, ties broken by the
// lowest user id.
func (s *Storage) MostFrequentUser(ctx context.Context) (persistence.UserUsage, error) {
	var usage persistence.UserUsage
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT user_id, COUNT(*) AS total
		FROM bookings
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
		LIMIT 1`).Scan(&usage.UserID, &usage.Bookings)
	if err != nil {
		return persistence.UserUsage{}, s.mapper.MapError(err)
	}
	return usage, nil
}
