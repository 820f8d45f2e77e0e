package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// CatalogService exposes the office/floor/sector/desk hierarchy and the slot grid.
type CatalogService struct {
	catalog  persistence.CatalogRepository
	audit    *auditor
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// CatalogServiceDeps captures the collaborators of CatalogService.
type CatalogServiceDeps struct {
	Catalog  persistence.CatalogRepository
	Audit    persistence.AuditRepository
	Sink     events.Sink
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewCatalogService constructs a CatalogService. Slots are planned in Location,
// UTC when unset.
func NewCatalogService(deps CatalogServiceDeps) *CatalogService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := defaultLogger(deps.Logger)
	return &CatalogService{
		catalog:  deps.Catalog,
		audit:    newAuditor(deps.Audit, deps.Sink, deps.Now, logger),
		location: deps.Location,
		now:      deps.Now,
		logger:   logger,
	}
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// Location returns the time zone used for calendar days.
func (s *CatalogService) Location() *time.Location {
	return s.location
}

// DeskExists reports whether code names a seeded desk.
func (s *CatalogService) DeskExists(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	exists, err := s.catalog.DeskExists(ctx, code)
	if err != nil {
		return false, &StorageError{Op: "desk lookup", Err: err}
	}
	return exists, nil
}

// ResolveStatusID returns the reference id of status. ok is false when the
// status has no reference row.
func (s *CatalogService) ResolveStatusID(ctx context.Context, status scheduler.Status) (id int64, ok bool, err error) {
	id, err = s.catalog.ResolveStatusID(ctx, status)
	if errors.Is(err, persistence.ErrUnknownStatus) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &StorageError{Op: "resolve status", Err: err}
	}
	return id, true, nil
}

// ListOffices returns office names in ascending order.
func (s *CatalogService) ListOffices(ctx context.Context) ([]string, error) {
	names, err := s.catalog.ListOffices(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list offices", Err: err}
	}
	return names, nil
}

// ListFloors returns the floors of office.
func (s *CatalogService) ListFloors(ctx context.Context, office string) ([]string, error) {
	names, err := s.catalog.ListFloors(ctx, office)
	if err != nil {
		return nil, &StorageError{Op: "list floors", Err: err}
	}
	return names, nil
}

// ListSectors returns the sectors of a floor.
func (s *CatalogService) ListSectors(ctx context.Context, office, floor string) ([]string, error) {
	names, err := s.catalog.ListSectors(ctx, office, floor)
	if err != nil {
		return nil, &StorageError{Op: "list sectors", Err: err}
	}
	return names, nil
}

// ListDesks returns the desks of a floor, optionally narrowed to one sector.
func (s *CatalogService) ListDesks(ctx context.Context, office, floor, sector string) ([]scheduler.Desk, error) {
	desks, err := s.catalog.ListDesks(ctx, persistence.DeskFilter{Office: office, Floor: floor, Sector: sector})
	if err != nil {
		return nil, &StorageError{Op: "list desks", Err: err}
	}
	if desks == nil {
		desks = []scheduler.Desk{}
	}
	return desks, nil
}

// GetDesk returns a desk with its location path.
func (s *CatalogService) GetDesk(ctx context.Context, code string) (scheduler.Desk, error) {
	desk, err := s.catalog.GetDesk(ctx, strings.TrimSpace(code))
	if errors.Is(err, persistence.ErrNotFound) {
		return scheduler.Desk{}, ErrNotFound
	}
	if err != nil {
		return scheduler.Desk{}, &StorageError{Op: "get desk", Err: err}
	}
	return desk, nil
}

// RegisterDesk seeds a desk, creating any missing office, floor and sector.
func (s *CatalogService) RegisterDesk(ctx context.Context, params RegisterDeskParams) (desk scheduler.Desk, err error) {
	desk = normalizeDesk(params.Desk)
	logger := s.loggerWith(ctx, "RegisterDesk",
		"principal_id", params.Principal.UserID,
		"desk_code", desk.Code,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register desk", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("desk_id", desk.ID).InfoContext(ctx, "desk registered")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	if desk.Code == "" {
		vErr.add("code", "desk code is required")
	}
	if desk.Location.Office == "" {
		vErr.add("office", "office is required")
	}
	if desk.Location.Floor == "" {
		vErr.add("floor", "floor is required")
	}
	if desk.Location.Sector == "" {
		vErr.add("sector", "sector is required")
	}
	if desk.Location.LocalID <= 0 {
		vErr.add("local_id", "local id must be positive")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	desk, err = s.catalog.CreateDesk(ctx, desk)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = invalid(ErrAlreadyExists, "code", "desk code or location is already registered")
			return
		}
		err = &StorageError{Op: "create desk", Err: err}
		return
	}

	event := s.audit.event(events.TypeDeskRegistered, params.Principal.UserID, persistence.OutcomeSuccess, ComponentCatalog,
		fmt.Sprintf("registered desk %s at %s/%s/%s/%d", desk.Code, desk.Location.Office, desk.Location.Floor, desk.Location.Sector, desk.Location.LocalID))
	event.DeskCode = desk.Code
	s.audit.record(ctx, event)
	return
}

// PlanSlots returns the bookable grid for the calendar day of date.
func (s *CatalogService) PlanSlots(ctx context.Context, date time.Time) (scheduler.SlotPlan, error) {
	plan, err := scheduler.PlanSlots(date, s.now(), s.location)
	if errors.Is(err, scheduler.ErrPastDate) {
		return scheduler.SlotPlan{}, invalid(scheduler.ErrPastDate, "date", "booking cannot be made for past dates")
	}
	if err != nil {
		return scheduler.SlotPlan{}, err
	}
	s.loggerWith(ctx, "PlanSlots").DebugContext(ctx, "slots planned",
		"date", plan.Date.Format(time.DateOnly),
		"starts", len(plan.Starts),
	)
	return plan, nil
}

func normalizeDesk(d scheduler.Desk) scheduler.Desk {
	d.Code = strings.TrimSpace(d.Code)
	d.Location.Office = strings.TrimSpace(d.Location.Office)
	d.Location.Floor = strings.TrimSpace(d.Location.Floor)
	d.Location.Sector = strings.TrimSpace(d.Location.Sector)
	d.Description = strings.TrimSpace(d.Description)
	return d
}
