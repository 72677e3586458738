package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/service"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type calendarService interface {
	Snapshot(ctx context.Context) (*service.CalendarSnapshot, error)
	Refresh(ctx context.Context) error
}

// CalendarHandler exposes the academic calendar gate.
type CalendarHandler struct {
	calendar calendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendar calendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// Current godoc
// @Summary Current academic calendar status
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/current [get]
func (h *CalendarHandler) Current(c *gin.Context) {
	snap, err := h.calendar.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap.Status())
}

// Refresh godoc
// @Summary Reload the active period
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/refresh [post]
func (h *CalendarHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.calendar.Refresh(ctx); err != nil {
		response.Error(c, err)
		return
	}
	snap, err := h.calendar.Snapshot(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap.Status())
}
