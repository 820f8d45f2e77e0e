package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/desk-booking/internal/application"
)

type sweeper interface {
	RunOnce(ctx context.Context) (application.SweepResult, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	sweeper   sweeper
	store     Pinger
	reports   reportInvalidator
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(sweeper sweeper, store Pinger, reports reportInvalidator, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{sweeper: sweeper, store: store, reports: reports, responder: newResponder(base), logger: base}
}

// Sweep runs one reconciliation pass immediately.
func (h *AdminHandler) Sweep(c *gin.Context) {
	ctx := c.Request.Context()
	result, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	if len(result.Transitions) > 0 && h.reports != nil {
		h.reports.Invalidate()
	}
	handlerLogger(ctx, h.logger, "AdminHandler", "Sweep").InfoContext(ctx, "manual sweep finished",
		"evaluated", result.Evaluated,
		"transitions", len(result.Transitions),
	)

	resp := sweepResponse{
		Evaluated:   result.Evaluated,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		Transitions: make([]transitionDTO, 0, len(result.Transitions)),
	}
	for _, t := range result.Transitions {
		resp.Transitions = append(resp.Transitions, transitionDTO{
			BookingID: t.BookingID,
			DeskCode:  t.DeskCode,
			UserID:    t.UserID,
			From:      string(t.From),
			To:        string(t.To),
			Rule:      string(t.Rule),
		})
	}
	h.responder.writeJSON(c, http.StatusOK, resp)
}

// Health reports 200 while the store answers pings and 503 otherwise.
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.store == nil {
		h.responder.writeJSON(c, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	if err := h.store.Ping(ctx); err != nil {
		h.responder.loggerFor(ctx).ErrorContext(ctx, "health check failed", "error", err)
		h.responder.writeJSON(c, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	h.responder.writeJSON(c, http.StatusOK, healthResponse{Status: "ok"})
}

type sweepResponse struct {
	Evaluated   int             `json:"evaluated"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	Transitions []transitionDTO `json:"transitions"`
}

type transitionDTO struct {
	BookingID string `json:"booking_id"`
	DeskCode  string `json:"desk_code"`
	UserID    string `json:"user_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Rule      string `json:"rule"`
}

type healthResponse struct {
	Status string `json:"status"`
}
