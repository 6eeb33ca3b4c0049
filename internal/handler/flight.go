package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// FlightHandler serves the flight catalogue and the admin counter
// resynchronization.
type FlightHandler struct {
	Flights *service.FlightService
	Counter *service.FlightCounter
	Log     logrus.FieldLogger
}

func NewFlightHandler(flights *service.FlightService, counter *service.FlightCounter, log logrus.FieldLogger) *FlightHandler {
	if flights == nil || counter == nil {
		panic("nil service passed to NewFlightHandler")
	}
	return &FlightHandler{Flights: flights, Counter: counter, Log: log}
}

type createFlightRequest struct {
	FlightNumber  string      `json:"flight_number"`
	Origin        string      `json:"origin"`
	Destination   string      `json:"destination"`
	DepartureTime time.Time   `json:"departure_time"`
	ArrivalTime   time.Time   `json:"arrival_time"`
	Price         model.Money `json:"price"`
	TotalSeats    int         `json:"total_seats"`
}

// Create handles POST /api/flights.
func (h *FlightHandler) Create(c echo.Context) error {
	var req createFlightRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	f, err := h.Flights.Create(c.Request().Context(), service.FlightInput{
		FlightNumber:  req.FlightNumber,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		Price:         req.Price,
		TotalSeats:    req.TotalSeats,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// Get handles GET /api/flights/:id.
func (h *FlightHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	f, err := h.Flights.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, f)
}

// List handles GET /api/flights.
func (h *FlightHandler) List(c echo.Context) error {
	list, err := h.Flights.List(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Search handles GET /api/flights/search?origin=&destination=&date=YYYY-MM-DD.
func (h *FlightHandler) Search(c echo.Context) error {
	var day time.Time
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		day = d
	}
	list, err := h.Flights.Search(c.Request().Context(), c.QueryParam("origin"), c.QueryParam("destination"), day)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) Origins(c echo.Context) error {
	list, err := h.Flights.Origins(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) Destinations(c echo.Context) error {
	list, err := h.Flights.Destinations(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Sync handles POST /api/flights/:id/sync and reports the counter before
// and after recomputation.
func (h *FlightHandler) Sync(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	before, after, err := h.Counter.Synchronize(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"flight_id": id,
		"before":    before,
		"after":     after,
	})
}
