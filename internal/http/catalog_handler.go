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

type catalogService interface {
	Location() *time.Location
	ListOffices(ctx context.Context) ([]string, error)
	ListFloors(ctx context.Context, office string) ([]string, error)
	ListSectors(ctx context.Context, office, floor string) ([]string, error)
	ListDesks(ctx context.Context, office, floor, sector string) ([]scheduler.Desk, error)
	RegisterDesk(ctx context.Context, params application.RegisterDeskParams) (scheduler.Desk, error)
	PlanSlots(ctx context.Context, date time.Time) (scheduler.SlotPlan, error)
}

// CatalogHandler serves the office hierarchy, desk registration and the slot grid.
type CatalogHandler struct {
	service   catalogService
	validate  *validator.Validate
	responder responder
}

func NewCatalogHandler(service catalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, validate: newValidator(), responder: newResponder(logger)}
}

func (h *CatalogHandler) ListOffices(c *gin.Context) {
	offices, err := h.service.ListOffices(c.Request.Context())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, namesResponse{Items: offices})
}

func (h *CatalogHandler) ListFloors(c *gin.Context) {
	floors, err := h.service.ListFloors(c.Request.Context(), c.Param("office"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, namesResponse{Items: floors})
}

func (h *CatalogHandler) ListSectors(c *gin.Context) {
	sectors, err := h.service.ListSectors(c.Request.Context(), c.Param("office"), c.Param("floor"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, namesResponse{Items: sectors})
}

// ListDesks lists the desks of a floor, optionally narrowed to ?sector=.
func (h *CatalogHandler) ListDesks(c *gin.Context) {
	desks, err := h.service.ListDesks(c.Request.Context(), c.Param("office"), c.Param("floor"), strings.TrimSpace(c.Query("sector")))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	out := make([]deskDTO, 0, len(desks))
	for _, d := range desks {
		out = append(out, toDeskDTO(d))
	}
	h.responder.writeJSON(c, http.StatusOK, listDesksResponse{Desks: out})
}

// RegisterDesk seeds a desk. Administrators only.
func (h *CatalogHandler) RegisterDesk(c *gin.Context) {
	var req registerDeskRequest
	if !bindJSON(c, h.validate, h.responder, &req) {
		return
	}
	principal, _ := PrincipalFromContext(c.Request.Context())
	desk, err := h.service.RegisterDesk(c.Request.Context(), application.RegisterDeskParams{
		Principal: principal,
		Desk: scheduler.Desk{
			Code: req.Code,
			Location: scheduler.Location{
				Office:  req.Office,
				Floor:   req.Floor,
				Sector:  req.Sector,
				LocalID: req.LocalID,
			},
			Description: req.Description,
		},
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, toDeskDTO(desk))
}

// Slots returns the bookable grid for ?date=YYYY-MM-DD.
func (h *CatalogHandler) Slots(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		h.responder.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "validation failed",
			Errors:    map[string]string{"date": "date is required"},
		})
		return
	}
	loc := h.service.Location()
	date, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		h.responder.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "validation failed",
			Errors:    map[string]string{"date": "date must match the layout 2006-01-02"},
		})
		return
	}

	plan, err := h.service.PlanSlots(c.Request.Context(), date)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toSlotPlanDTO(plan, loc))
}

type namesResponse struct {
	Items []string `json:"items"`
}

type registerDeskRequest struct {
	Code        string `json:"code" validate:"required,deskcode"`
	Office      string `json:"office" validate:"required,max=100"`
	Floor       string `json:"floor" validate:"required,max=100"`
	Sector      string `json:"sector" validate:"required,max=100"`
	LocalID     int    `json:"local_id" validate:"gt=0"`
	Description string `json:"description" validate:"max=500"`
}

type deskDTO struct {
	Code        string `json:"code"`
	Office      string `json:"office"`
	Floor       string `json:"floor"`
	Sector      string `json:"sector"`
	LocalID     int    `json:"local_id"`
	Description string `json:"description,omitempty"`
}

type listDesksResponse struct {
	Desks []deskDTO `json:"desks"`
}

func toDeskDTO(d scheduler.Desk) deskDTO {
	return deskDTO{
		Code:        d.Code,
		Office:      d.Location.Office,
		Floor:       d.Location.Floor,
		Sector:      d.Location.Sector,
		LocalID:     d.Location.LocalID,
		Description: d.Description,
	}
}

type slotPlanDTO struct {
	Date           string   `json:"date"`
	SuggestedStart string   `json:"suggested_start"`
	SuggestedEnd   string   `json:"suggested_end"`
	Starts         []string `json:"starts"`
	Ends           []string `json:"ends"`
}

const clockLayout = "15:04"

func toSlotPlanDTO(plan scheduler.SlotPlan, loc *time.Location) slotPlanDTO {
	clock := func(ts []time.Time) []string {
		out := make([]string, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.In(loc).Format(clockLayout))
		}
		return out
	}
	dto := slotPlanDTO{
		Date:   plan.Date.In(loc).Format(time.DateOnly),
		Starts: clock(plan.Starts),
		Ends:   clock(plan.Ends),
	}
	if !plan.SuggestedStart.IsZero() {
		dto.SuggestedStart = plan.SuggestedStart.In(loc).Format(clockLayout)
	}
	if !plan.SuggestedEnd.IsZero() {
		dto.SuggestedEnd = plan.SuggestedEnd.In(loc).Format(clockLayout)
	}
	return dto
}
