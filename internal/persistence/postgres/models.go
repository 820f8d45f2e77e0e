package postgres

import (
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

type officeRow struct {
	OfficeID   int64 `gorm:"primaryKey"`
	OfficeName string
}

func (officeRow) TableName() string { return "offices" }

type floorRow struct {
	FloorID   int64 `gorm:"primaryKey"`
	OfficeID  int64
	FloorName string
}

func (floorRow) TableName() string { return "floors" }

type sectorRow struct {
	SectorID   int64 `gorm:"primaryKey"`
	FloorID    int64
	SectorName string
}

func (sectorRow) TableName() string { return "sectors" }

type deskRow struct {
	DeskID      int64 `gorm:"primaryKey"`
	DeskCode    string
	SectorID    int64
	LocalID     int
	Description string
}

func (deskRow) TableName() string { return "desks" }

// deskView is a desk joined with its location path.
type deskView struct {
	DeskID      int64
	DeskCode    string
	OfficeName  string
	FloorName   string
	SectorName  string
	LocalID     int
	Description string
}

func (v deskView) toDomain() scheduler.Desk {
	return scheduler.Desk{
		ID:   v.DeskID,
		Code: v.DeskCode,
		Location: scheduler.Location{
			Office:  v.OfficeName,
			Floor:   v.FloorName,
			Sector:  v.SectorName,
			LocalID: v.LocalID,
		},
		Description: v.Description,
	}
}

type bookingRow struct {
	BookingID string `gorm:"primaryKey"`
	UserID    string
	DeskCode  string
	StartAt   time.Time
	EndAt     time.Time
	StatusID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (bookingRow) TableName() string { return "bookings" }

// bookingView is a booking joined with its status name.
type bookingView struct {
	bookingRow
	StatusName string
}

func (v bookingView) toDomain() (scheduler.Booking, error) {
	status, err := scheduler.ParseStatus(v.StatusName)
	if err != nil {
		return scheduler.Booking{}, err
	}
	return scheduler.Booking{
		ID:        v.BookingID,
		UserID:    v.UserID,
		DeskCode:  v.DeskCode,
		Start:     v.StartAt.UTC(),
		End:       v.EndAt.UTC(),
		Status:    status,
		CreatedAt: v.CreatedAt.UTC(),
		UpdatedAt: v.UpdatedAt.UTC(),
	}, nil
}

type userRow struct {
	UserID       string `gorm:"primaryKey"`
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() persistence.User {
	return persistence.User{
		ID:           r.UserID,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type logRow struct {
	LogID       int64 `gorm:"primaryKey"`
	UserID      string
	Outcome     string
	Component   string
	Description string
	CreatedAt   time.Time
}

func (logRow) TableName() string { return "logs" }

func newLogRow(entry persistence.AuditEntry) logRow {
	return logRow{
		UserID:      entry.UserID,
		Outcome:     entry.Outcome,
		Component:   entry.Component,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt.UTC(),
	}
}

func (r logRow) toDomain() persistence.AuditEntry {
	return persistence.AuditEntry{
		ID:          r.LogID,
		UserID:      r.UserID,
		Outcome:     r.Outcome,
		Component:   r.Component,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}
