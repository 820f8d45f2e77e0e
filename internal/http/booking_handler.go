package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/scheduler"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (scheduler.Booking, error)
	CheckIn(ctx context.Context, params application.BookingActionParams) (bool, error)
	CancelBooking(ctx context.Context, params application.BookingActionParams) (bool, error)
	FindCurrentOrNext(ctx context.Context, principal application.Principal, userID string) (scheduler.Booking, bool, error)
	GetBooking(ctx context.Context, principal application.Principal, id string) (scheduler.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]scheduler.Booking, error)
}

// reportInvalidator drops cached report figures after the booking set changes.
type reportInvalidator interface {
	Invalidate()
}

// BookingHandler serves the booking lifecycle endpoints.
type BookingHandler struct {
	service   bookingService
	reports   reportInvalidator
	location  *time.Location
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler builds a handler. Wall clock fields of requests are read in
// loc; reports may be nil.
func NewBookingHandler(service bookingService, reports reportInvalidator, loc *time.Location, logger *slog.Logger) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &BookingHandler{
		service:   service,
		reports:   reports,
		location:  loc,
		validate:  newValidator(),
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create books a desk. The interval is either RFC3339 start/end or a date with
// HH:MM start_time/end_time in the reporting timezone.
func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if !bindJSON(c, h.validate, h.responder, &req) {
		return
	}
	start, end, ok := req.interval(h.location)
	if !ok {
		h.responder.writeError(c, http.StatusBadRequest, "VALIDATION_FAILED", errMissingBookable)
		return
	}

	ctx := c.Request.Context()
	principal, _ := PrincipalFromContext(ctx)
	booking, err := h.service.CreateBooking(ctx, application.CreateBookingParams{
		Principal: principal,
		Input: application.BookingInput{
			UserID:   strings.TrimSpace(req.UserID),
			DeskCode: req.DeskCode,
			Start:    start,
			End:      end,
		},
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.invalidateReports(ctx, "Create")
	h.responder.writeJSON(c, http.StatusCreated, toBookingDTO(booking))
}

// List returns bookings of ?user_id= (default the caller), optionally narrowed
// by repeated or comma separated ?status=.
func (h *BookingHandler) List(c *gin.Context) {
	principal, _ := PrincipalFromContext(c.Request.Context())
	var statuses []scheduler.Status
	for _, raw := range c.QueryArray("status") {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				statuses = append(statuses, scheduler.Status(name))
			}
		}
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), application.ListBookingsParams{
		Principal: principal,
		UserID:    strings.TrimSpace(c.Query("user_id")),
		Statuses:  statuses,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	h.responder.writeJSON(c, http.StatusOK, listBookingsResponse{Bookings: out})
}

// Current returns the caller's active booking, or the next pending one.
func (h *BookingHandler) Current(c *gin.Context) {
	principal, _ := PrincipalFromContext(c.Request.Context())
	booking, found, err := h.service.FindCurrentOrNext(c.Request.Context(), principal, strings.TrimSpace(c.Query("user_id")))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	if !found {
		h.responder.writeJSON(c, http.StatusNotFound, errorResponse{
			ErrorCode: "NO_CURRENT_BOOKING",
			Message:   "there is no active or upcoming booking",
		})
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) Get(c *gin.Context) {
	principal, _ := PrincipalFromContext(c.Request.Context())
	booking, err := h.service.GetBooking(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) CheckIn(c *gin.Context) {
	h.act(c, "CheckIn", h.service.CheckIn)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	h.act(c, "Cancel", h.service.CancelBooking)
}

func (h *BookingHandler) act(c *gin.Context, operation string, action func(context.Context, application.BookingActionParams) (bool, error)) {
	ctx := c.Request.Context()
	principal, _ := PrincipalFromContext(ctx)
	id := c.Param("id")

	ok, err := action(ctx, application.BookingActionParams{Principal: principal, BookingID: id})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	if !ok {
		h.responder.handleServiceError(c, application.ErrNotFound)
		return
	}
	h.invalidateReports(ctx, operation)

	booking, err := h.service.GetBooking(ctx, principal, id)
	if err != nil {
		h.log(ctx, operation, "booking_id", id).WarnContext(ctx, "booking changed but could not be reloaded", "error", err)
		h.responder.writeJSON(c, http.StatusNoContent, nil)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) invalidateReports(ctx context.Context, operation string) {
	if h.reports == nil {
		return
	}
	h.reports.Invalidate()
	h.log(ctx, operation).DebugContext(ctx, "report cache invalidated")
}

type createBookingRequest struct {
	UserID    string `json:"user_id" validate:"omitempty,max=254"`
	DeskCode  string `json:"desk_code" validate:"required,deskcode"`
	Start     string `json:"start" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	End       string `json:"end" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

// interval resolves the requested interval. RFC3339 start/end take precedence
// over the wall clock form.
func (r createBookingRequest) interval(loc *time.Location) (time.Time, time.Time, bool) {
	if r.Start != "" && r.End != "" {
		start, err1 := time.Parse(time.RFC3339, r.Start)
		end, err2 := time.Parse(time.RFC3339, r.End)
		return start, end, err1 == nil && err2 == nil
	}
	if r.Date == "" || r.StartTime == "" || r.EndTime == "" {
		return time.Time{}, time.Time{}, false
	}
	const layout = time.DateOnly + " " + clockLayout
	start, err1 := time.ParseInLocation(layout, r.Date+" "+r.StartTime, loc)
	end, err2 := time.ParseInLocation(layout, r.Date+" "+r.EndTime, loc)
	return start, end, err1 == nil && err2 == nil
}

type bookingDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	DeskCode  string `json:"desk_code"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

func toBookingDTO(b scheduler.Booking) bookingDTO {
	return bookingDTO{
		ID:        b.ID,
		UserID:    b.UserID,
		DeskCode:  b.DeskCode,
		Start:     formatInstant(b.Start),
		End:       formatInstant(b.End),
		Status:    string(b.Status),
		CreatedAt: formatInstant(b.CreatedAt),
		UpdatedAt: formatInstant(b.UpdatedAt),
	}
}

type conflictDTO struct {
	BookingID string `json:"booking_id"`
	DeskCode  string `json:"desk_code"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			BookingID: c.WithBookingID,
			DeskCode:  c.DeskCode,
			Start:     formatInstant(c.Start),
			End:       formatInstant(c.End),
			Status:    string(c.Status),
		})
	}
	return out
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
