package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/desk-booking/internal/application"
)

type reportService interface {
	MostBookedDesk(ctx context.Context, principal application.Principal) (application.DeskReport, bool, error)
	MostFrequentUser(ctx context.Context, principal application.Principal) (application.UserReport, bool, error)
}

// ReportHandler serves the usage reports. A report without data is returned
// with available set to false.
type ReportHandler struct {
	service   reportService
	responder responder
}

func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, responder: newResponder(logger)}
}

func (h *ReportHandler) MostBookedDesk(c *gin.Context) {
	principal, _ := PrincipalFromContext(c.Request.Context())
	report, ok, err := h.service.MostBookedDesk(c.Request.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	resp := deskReportResponse{Available: ok}
	if ok {
		desk := toDeskDTO(report.Desk)
		resp.Desk = &desk
		resp.Bookings = report.Bookings
	}
	h.responder.writeJSON(c, http.StatusOK, resp)
}

func (h *ReportHandler) MostFrequentUser(c *gin.Context) {
	principal, _ := PrincipalFromContext(c.Request.Context())
	report, ok, err := h.service.MostFrequentUser(c.Request.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	resp := userReportResponse{Available: ok}
	if ok {
		resp.UserID = report.UserID
		resp.Bookings = report.Bookings
	}
	h.responder.writeJSON(c, http.StatusOK, resp)
}

type deskReportResponse struct {
	Available bool     `json:"available"`
	Desk      *deskDTO `json:"desk,omitempty"`
	Bookings  int      `json:"bookings"`
}

type userReportResponse struct {
	Available bool   `json:"available"`
	UserID    string `json:"user_id,omitempty"`
	Bookings  int    `json:"bookings"`
}
