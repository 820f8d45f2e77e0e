package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

const deskSelect = `
	SELECT d.desk_id, d.desk_code, o.office_name, f.floor_name, s.sector_name, d.local_id, d.description
	FROM desks d
	JOIN sectors s ON s.sector_id = d.sector_id
	JOIN floors f ON f.floor_id = s.floor_id
	JOIN offices o ON o.office_id = f.office_id`

// DeskExists reports whether a desk with the given code is seeded.
func (s *Storage) DeskExists(ctx context.Context, code string) (bool, error) {
	var exists int
	err := s.pool.DB().QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM desks WHERE desk_code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return exists == 1, nil
}

// GetDesk returns the desk and its location path.
func (s *Storage) GetDesk(ctx context.Context, code string) (scheduler.Desk, error) {
	row := s.pool.DB().QueryRowContext(ctx, deskSelect+` WHERE d.desk_code = ?`, code)
	desk, err := scanDesk(row)
	if err != nil {
		return scheduler.Desk{}, s.mapper.MapError(err)
	}
	return desk, nil
}

// CreateDesk seeds a desk, creating any missing office, floor and sector rows.
func (s *Storage) CreateDesk(ctx context.Context, desk scheduler.Desk) (scheduler.Desk, error) {
	if desk.Code == "" || desk.Location.Office == "" || desk.Location.Floor == "" || desk.Location.Sector == "" {
		return scheduler.Desk{}, persistence.ErrConstraintViolation
	}
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		officeID, err := upsertReference(ctx, tx,
			`INSERT INTO offices (office_name) VALUES (?) ON CONFLICT (office_name) DO NOTHING`,
			`SELECT office_id FROM offices WHERE office_name = ?`,
			desk.Location.Office)
		if err != nil {
			return err
		}
		floorID, err := upsertReference(ctx, tx,
			`INSERT INTO floors (office_id, floor_name) VALUES (?, ?) ON CONFLICT (office_id, floor_name) DO NOTHING`,
			`SELECT floor_id FROM floors WHERE office_id = ? AND floor_name = ?`,
			officeID, desk.Location.Floor)
		if err != nil {
			return err
		}
		sectorID, err := upsertReference(ctx, tx,
			`INSERT INTO sectors (floor_id, sector_name) VALUES (?, ?) ON CONFLICT (floor_id, sector_name) DO NOTHING`,
			`SELECT sector_id FROM sectors WHERE floor_id = ? AND sector_name = ?`,
			floorID, desk.Location.Sector)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO desks (desk_code, sector_id, local_id, description) VALUES (?, ?, ?, ?)`,
			desk.Code, sectorID, desk.Location.LocalID, desk.Description)
		if err != nil {
			return err
		}
		desk.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return scheduler.Desk{}, s.mapper.MapError(err)
	}
	return desk, nil
}

// ListOffices returns office names in ascending order.
func (s *Storage) ListOffices(ctx context.Context) ([]string, error) {
	return s.queryNames(ctx, `SELECT office_name FROM offices ORDER BY office_name`)
}

// ListFloors returns the floors of an office in ascending order.
func (s *Storage) ListFloors(ctx context.Context, office string) ([]string, error) {
	return s.queryNames(ctx, `
		SELECT f.floor_name
		FROM floors f
		JOIN offices o ON o.office_id = f.office_id
		WHERE o.office_name = ?
		ORDER BY f.floor_name`, office)
}

// ListSectors returns the sectors of a floor in ascending order.
func (s *Storage) ListSectors(ctx context.Context, office, floor string) ([]string, error) {
	return s.queryNames(ctx, `
		SELECT s.sector_name
		FROM sectors s
		JOIN floors f ON f.floor_id = s.floor_id
		JOIN offices o ON o.office_id = f.office_id
		WHERE o.office_name = ? AND f.floor_name = ?
		ORDER BY s.sector_name`, office, floor)
}

// ListDesks returns desks matching filter ordered by location.
func (s *Storage) ListDesks(ctx context.Context, filter persistence.DeskFilter) ([]scheduler.Desk, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Office != "" {
		conditions = append(conditions, "o.office_name = ?")
		args = append(args, filter.Office)
	}
	if filter.Floor != "" {
		conditions = append(conditions, "f.floor_name = ?")
		args = append(args, filter.Floor)
	}
	if filter.Sector != "" {
		conditions = append(conditions, "s.sector_name = ?")
		args = append(args, filter.Sector)
	}
	query := deskSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY o.office_name, f.floor_name, s.sector_name, d.local_id"

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var desks []scheduler.Desk
	for rows.Next() {
		desk, err := scanDesk(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		desks = append(desks, desk)
	}
	return desks, s.mapper.MapError(rows.Err())
}

// ResolveStatusID returns the reference id of status.
func (s *Storage) ResolveStatusID(ctx context.Context, status scheduler.Status) (int64, error) {
	var id int64
	err := s.pool.DB().QueryRowContext(ctx, `SELECT status_id FROM statuses WHERE status_name = ?`, string(status)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, persistence.ErrUnknownStatus
	}
	if err != nil {
		return 0, s.mapper.MapError(err)
	}
	return id, nil
}

func (s *Storage) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.mapper.MapError(err)
		}
		names = append(names, name)
	}
	return names, s.mapper.MapError(rows.Err())
}

func upsertReference(ctx context.Context, tx *sql.Tx, insert, lookup string, args ...any) (int64, error) {
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, lookup, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDesk(row rowScanner) (scheduler.Desk, error) {
	var desk scheduler.Desk
	err := row.Scan(
		&desk.ID,
		&desk.Code,
		&desk.Location.Office,
		&desk.Location.Floor,
		&desk.Location.Sector,
		&desk.Location.LocalID,
		&desk.Description,
	)
	return desk, err
}
