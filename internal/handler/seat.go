package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// SeatHandler serves the seat listings and the admin block/unblock routes.
type SeatHandler struct {
	Inventory *service.SeatInventory
	Log       logrus.FieldLogger
}

func NewSeatHandler(inv *service.SeatInventory, log logrus.FieldLogger) *SeatHandler {
	if inv == nil {
		panic("nil service passed to NewSeatHandler")
	}
	return &SeatHandler{Inventory: inv, Log: log}
}

// List handles GET /api/seats/flight/:flightId.
func (h *SeatHandler) List(c echo.Context) error {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	seats, err := h.Inventory.ListAll(c.Request().Context(), flightID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, seats)
}

// Statistics handles GET /api/seats/flight/:flightId/statistics.
func (h *SeatHandler) Statistics(c echo.Context) error {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	counts, err := h.Inventory.Counts(c.Request().Context(), flightID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"flight_id": flightID,
		"total":     counts.Total,
		"available": counts.Available,
		"booked":    counts.Booked,
		"blocked":   counts.Blocked,
	})
}

// Block handles POST /api/seats/flight/:flightId/:seatNumber/block.
func (h *SeatHandler) Block(c echo.Context) error {
	return h.change(c, h.Inventory.Block)
}

// Unblock handles POST /api/seats/flight/:flightId/:seatNumber/unblock.
func (h *SeatHandler) Unblock(c echo.Context) error {
	return h.change(c, h.Inventory.Unblock)
}

func (h *SeatHandler) change(c echo.Context, op func(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error)) error {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	seat, err := op(c.Request().Context(), flightID, strings.ToUpper(strings.TrimSpace(c.Param("seatNumber"))))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, seat)
}
