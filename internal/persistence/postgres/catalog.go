package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

func (s *Storage) desks(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("desks d").
		Select("d.desk_id, d.desk_code, o.office_name, f.floor_name, s.sector_name, d.local_id, d.description").
		Joins("JOIN sectors s ON s.sector_id = d.sector_id").
		Joins("JOIN floors f ON f.floor_id = s.floor_id").
		Joins("JOIN offices o ON o.office_id = f.office_id")
}

// DeskExists reports whether a desk with the given code is seeded.
func (s *Storage) DeskExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&deskRow{}).Where("desk_code = ?", code).Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// GetDesk returns the desk and its location path.
func (s *Storage) GetDesk(ctx context.Context, code string) (scheduler.Desk, error) {
	var view deskView
	res := s.desks(ctx).Where("d.desk_code = ?", code).Limit(1).Scan(&view)
	if res.Error != nil {
		return scheduler.Desk{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return scheduler.Desk{}, persistence.ErrNotFound
	}
	return view.toDomain(), nil
}

// CreateDesk seeds a desk, creating any missing office, floor and sector rows.
func (s *Storage) CreateDesk(ctx context.Context, desk scheduler.Desk) (scheduler.Desk, error) {
	if desk.Code == "" || desk.Location.Office == "" || desk.Location.Floor == "" || desk.Location.Sector == "" {
		return scheduler.Desk{}, persistence.ErrConstraintViolation
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		office := officeRow{OfficeName: desk.Location.Office}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&office).Error; err != nil {
			return err
		}
		if err := tx.Where("office_name = ?", office.OfficeName).First(&office).Error; err != nil {
			return err
		}

		floor := floorRow{OfficeID: office.OfficeID, FloorName: desk.Location.Floor}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&floor).Error; err != nil {
			return err
		}
		if err := tx.Where("office_id = ? AND floor_name = ?", floor.OfficeID, floor.FloorName).First(&floor).Error; err != nil {
			return err
		}

		sector := sectorRow{FloorID: floor.FloorID, SectorName: desk.Location.Sector}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sector).Error; err != nil {
			return err
		}
		if err := tx.Where("floor_id = ? AND sector_name = ?", sector.FloorID, sector.SectorName).First(&sector).Error; err != nil {
			return err
		}

		row := deskRow{
			DeskCode:    desk.Code,
			SectorID:    sector.SectorID,
			LocalID:     desk.Location.LocalID,
			Description: desk.Description,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		desk.ID = row.DeskID
		return nil
	})
	if err != nil {
		return scheduler.Desk{}, mapError(err)
	}
	return desk, nil
}

// ListOffices returns office names in ascending order.
func (s *Storage) ListOffices(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.WithContext(ctx).Model(&officeRow{}).Order("office_name").Pluck("office_name", &names).Error
	return names, mapError(err)
}

// ListFloors returns the floors of an office in ascending order.
func (s *Storage) ListFloors(ctx context.Context, office string) ([]string, error) {
	names := []string{}
	err := s.db.WithContext(ctx).
		Table("floors f").
		Joins("JOIN offices o ON o.office_id = f.office_id").
		Where("o.office_name = ?", office).
		Order("f.floor_name").
		Pluck("f.floor_name", &names).Error
	return names, mapError(err)
}

// ListSectors returns the sectors of a floor in ascending order.
func (s *Storage) ListSectors(ctx context.Context, office, floor string) ([]string, error) {
	names := []string{}
	err := s.db.WithContext(ctx).
		Table("sectors s").
		Joins("JOIN floors f ON f.floor_id = s.floor_id").
		Joins("JOIN offices o ON o.office_id = f.office_id").
		Where("o.office_name = ? AND f.floor_name = ?", office, floor).
		Order("s.sector_name").
		Pluck("s.sector_name", &names).Error
	return names, mapError(err)
}

// ListDesks returns desks matching filter ordered by location.
func (s *Storage) ListDesks(ctx context.Context, filter persistence.DeskFilter) ([]scheduler.Desk, error) {
	q := s.desks(ctx)
	if filter.Office != "" {
		q = q.Where("o.office_name = ?", filter.Office)
	}
	if filter.Floor != "" {
		q = q.Where("f.floor_name = ?", filter.Floor)
	}
	if filter.Sector != "" {
		q = q.Where("s.sector_name = ?", filter.Sector)
	}

	var views []deskView
	if err := q.Order("o.office_name, f.floor_name, s.sector_name, d.local_id").Scan(&views).Error; err != nil {
		return nil, mapError(err)
	}
	desks := make([]scheduler.Desk, 0, len(views))
	for _, v := range views {
		desks = append(desks, v.toDomain())
	}
	return desks, nil
}

// ResolveStatusID returns the reference id of status.
func (s *Storage) ResolveStatusID(ctx context.Context, status scheduler.Status) (int64, error) {
	return resolveStatusID(s.db.WithContext(ctx), status)
}

func resolveStatusID(db *gorm.DB, status scheduler.Status) (int64, error) {
	var ids []int64
	if err := db.Table("statuses").Where("status_name = ?", string(status)).Pluck("status_id", &ids).Error; err != nil {
		return 0, mapError(err)
	}
	if len(ids) == 0 {
		return 0, persistence.ErrUnknownStatus
	}
	return ids[0], nil
}
