package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// boardingPassSize is the QR image edge in pixels.
const boardingPassSize = 256

// ReservationHandler exposes booking, cancellation, seat change and the
// reservation lookups.
type ReservationHandler struct {
	Coordinator *service.ReservationCoordinator
	Inventory   *service.SeatInventory
	Log         logrus.FieldLogger
}

func NewReservationHandler(coord *service.ReservationCoordinator, inv *service.SeatInventory, log logrus.FieldLogger) *ReservationHandler {
	if coord == nil || inv == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Coordinator: coord, Inventory: inv, Log: log}
}

type bookingRequest struct {
	PassengerName      string `json:"passenger_name"`
	PassengerEmail     string `json:"passenger_email"`
	PassengerPhone     string `json:"passenger_phone"`
	PreferredSeatClass string `json:"preferred_seat_class"`
	CardNumber         string `json:"card_number"`
	CardHolderName     string `json:"card_holder_name"`
}

func (r bookingRequest) toService(c echo.Context) service.BookingRequest {
	return service.BookingRequest{
		PassengerName:      r.PassengerName,
		PassengerEmail:     r.PassengerEmail,
		PassengerPhone:     r.PassengerPhone,
		PreferredSeatClass: model.SeatClass(r.PreferredSeatClass),
		CardNumber:         r.CardNumber,
		CardHolderName:     r.CardHolderName,
		CreatedBy:          middleware.Actor(c),
	}
}

func (h *ReservationHandler) bind(c echo.Context) (uint64, service.BookingRequest, error) {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return 0, service.BookingRequest{}, err
	}
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return 0, service.BookingRequest{}, fmt.Errorf("invalid request body")
	}
	return flightID, body.toService(c), nil
}

// CreateWithPayment handles POST /api/reservations/flight/:flightId/with-payment.
func (h *ReservationHandler) CreateWithPayment(c echo.Context) error {
	flightID, req, err := h.bind(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.Coordinator.CreateWithPayment(c.Request().Context(), flightID, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CreateWithSpecificSeat handles
// POST /api/reservations/flight/:flightId/with-payment/seat/:seatNumber.
func (h *ReservationHandler) CreateWithSpecificSeat(c echo.Context) error {
	flightID, req, err := h.bind(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.Coordinator.CreateWithSpecificSeat(c.Request().Context(), flightID, c.Param("seatNumber"), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CreateWithoutPayment handles the admin route POST /api/reservations/flight/:flightId.
func (h *ReservationHandler) CreateWithoutPayment(c echo.Context) error {
	flightID, req, err := h.bind(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.Coordinator.CreateWithoutPayment(c.Request().Context(), flightID, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel handles DELETE /api/reservations/cancel/:bookingReference.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("bookingReference"))
	ok, err := h.Coordinator.Cancel(c.Request().Context(), ref)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"message": "no active reservation with reference " + ref,
			"code":    "RESERVATION_NOT_FOUND",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "reservation cancelled"})
}

// ChangeSeat handles POST /api/reservations/change-seat/:bookingReference/:newSeatNumber.
func (h *ReservationHandler) ChangeSeat(c echo.Context) error {
	r, err := h.Coordinator.ChangeSeat(c.Request().Context(), c.Param("bookingReference"), c.Param("newSeatNumber"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListAll handles the admin route GET /api/reservations.
func (h *ReservationHandler) ListAll(c echo.Context) error {
	list, err := h.Coordinator.ListAll(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// ByReference handles GET /api/reservations/reference/:ref.
func (h *ReservationHandler) ByReference(c echo.Context) error {
	r, err := h.Coordinator.ByBookingReference(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ByEmail handles GET /api/reservations/email/:email.
func (h *ReservationHandler) ByEmail(c echo.Context) error {
	list, err := h.Coordinator.ByPassengerEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// BoardingPass handles GET /api/reservations/reference/:ref/boarding-pass.png
// and renders a QR code for a CONFIRMED reservation.
func (h *ReservationHandler) BoardingPass(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.Coordinator.ByBookingReference(ctx, c.Param("ref"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if r.Status != model.ReservationConfirmed {
		return fail(c, h.Log, fmt.Errorf("%w: reservation %s is %s", service.ErrInvalidState, r.BookingReference, r.Status))
	}
	f, err := h.Coordinator.Flight(ctx, r)
	if err != nil {
		return fail(c, h.Log, err)
	}
	png, err := qrcode.Encode(BoardingPassPayload(r, f), qrcode.Medium, boardingPassSize)
	if err != nil {
		return fail(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}

// BoardingPassPayload is the text encoded in a boarding pass QR code.
func BoardingPassPayload(r *model.Reservation, f *model.Flight) string {
	return strings.Join([]string{
		r.BookingReference,
		f.FlightNumber,
		strings.Join(r.SeatNumbers, ","),
		r.PassengerName,
	}, "|")
}

// AvailableSeats handles GET /api/reservations/flight/:flightId/available-seats[?class=].
func (h *ReservationHandler) AvailableSeats(c echo.Context) error {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	class := model.SeatClass(strings.ToUpper(strings.TrimSpace(c.QueryParam("class"))))
	seats, err := h.Inventory.ListAvailable(c.Request().Context(), flightID, class)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, seats)
}

// SeatMap handles GET /api/reservations/flight/:flightId/seat-map.
func (h *ReservationHandler) SeatMap(c echo.Context) error {
	flightID, err := parseID(c, "flightId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	rows, err := h.Inventory.SeatMap(c.Request().Context(), flightID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rows)
}
