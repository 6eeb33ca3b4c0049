package router_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/app"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/repository/memory"
	"github.com/iliyamo/flight-seat-reservation/internal/router"
	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

const secret = "test-secret"

type harness struct {
	t     *testing.T
	e     *echo.Echo
	admin string
	user  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.New()
	svc := app.NewServices(store, config.Config{SeatClaimAttempts: 3}, nil, log)

	e := echo.New()
	router.RegisterRoutes(e, store)
	router.RegisterAPI(e, router.Handlers{
		Flights:      handler.NewFlightHandler(svc.Flights, svc.Counter, log),
		Reservations: handler.NewReservationHandler(svc.Coordinator, svc.Inventory, log),
		Seats:        handler.NewSeatHandler(svc.Inventory, log),
		Payments:     handler.NewPaymentHandler(svc.Payments, log),
	}, router.Middleware{JWTSecret: secret})

	admin, err := utils.NewAccessToken(secret, "ops@example.com", "ADMIN", 5)
	require.NoError(t, err)
	user, err := utils.NewAccessToken(secret, "agent@example.com", "AGENT", 5)
	require.NoError(t, err)
	return &harness{t: t, e: e, admin: admin.Token, user: user.Token}
}

func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["message"])
}

const flightBody = `{"flight_number":"BA100","origin":"LHR","destination":"JFK",
	"departure_time":"2026-03-14T09:30:00Z","arrival_time":"2026-03-14T17:30:00Z",
	"price":199.99,"total_seats":12}`

const bookingBody = `{"passenger_name":"Ada Lovelace","passenger_email":"ada@example.com",
	"passenger_phone":"+44 20 7946 0000","preferred_seat_class":"economy",
	"card_number":"4539 1488 0343 6467","card_holder_name":"ADA LOVELACE"}`

func (h *harness) createFlight() {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/flights", flightBody, h.admin)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	h := newHarness(t)

	assertFailure(t, h.do(http.MethodPost, "/api/flights", flightBody, ""), http.StatusUnauthorized, "UNAUTHORIZED")
	assertFailure(t, h.do(http.MethodPost, "/api/flights", flightBody, "garbage"), http.StatusUnauthorized, "UNAUTHORIZED")
	assertFailure(t, h.do(http.MethodPost, "/api/flights", flightBody, h.user), http.StatusForbidden, "FORBIDDEN")

	rec := h.do(http.MethodPost, "/api/flights", flightBody, h.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	f := decode(t, rec)
	assert.Equal(t, "BA100", f["flight_number"])
	assert.Equal(t, 199.99, f["price"])
	assert.Equal(t, float64(12), f["available_seats"])

	assertFailure(t, h.do(http.MethodPost, "/api/flights", flightBody, h.admin), http.StatusConflict, "CONFLICT")
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.createFlight()

	rec := h.do(http.MethodPost, "/api/reservations/flight/1/with-payment", bookingBody, h.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode(t, rec)
	ref, _ := r["booking_reference"].(string)
	require.Regexp(t, `^FL[0-9A-F]{8}$`, ref)
	assert.Equal(t, []any{"1A"}, r["seat_numbers"])
	assert.Equal(t, "CONFIRMED", r["status"])
	assert.Equal(t, "agent@example.com", r["created_by"])

	rec = h.do(http.MethodGet, "/api/reservations/reference/"+ref+"/boarding-pass.png", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = h.do(http.MethodGet, "/api/seats/flight/1/statistics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, float64(11), stats["available"])
	assert.Equal(t, float64(1), stats["booked"])

	rec = h.do(http.MethodPost, "/api/reservations/change-seat/"+ref+"/2c", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"2C"}, decode(t, rec)["seat_numbers"])

	rec = h.do(http.MethodDelete, "/api/reservations/cancel/"+ref, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertFailure(t, h.do(http.MethodDelete, "/api/reservations/cancel/"+ref, "", ""), http.StatusNotFound, "RESERVATION_NOT_FOUND")
	assertFailure(t, h.do(http.MethodGet, "/api/reservations/reference/"+ref+"/boarding-pass.png", "", ""), http.StatusBadRequest, "INVALID_STATE")

	rec = h.do(http.MethodGet, "/api/admin/payments/unreconciled", "", h.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = h.do(http.MethodGet, "/api/flights/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), decode(t, rec)["available_seats"])
}

func TestBookingErrorsOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.createFlight()

	badCard := strings.Replace(bookingBody, "6467", "6466", 1)
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1/with-payment", badCard, ""), http.StatusBadRequest, "INVALID_CARD")
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/9/with-payment", bookingBody, ""), http.StatusNotFound, "FLIGHT_NOT_FOUND")
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/abc/with-payment", bookingBody, ""), http.StatusBadRequest, "VALIDATION_ERROR")
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1/with-payment", `{"passenger_name":""}`, ""), http.StatusBadRequest, "VALIDATION_ERROR")
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1/with-payment", "{", ""), http.StatusBadRequest, "VALIDATION_ERROR")

	rec := h.do(http.MethodPost, "/api/reservations/flight/1/with-payment/seat/2A", bookingBody, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1/with-payment/seat/2A", bookingBody, ""), http.StatusBadRequest, "SEAT_UNAVAILABLE")
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1/with-payment/seat/9A", bookingBody, ""), http.StatusBadRequest, "SEAT_NOT_FOUND")

	assertFailure(t, h.do(http.MethodGet, "/api/reservations/reference/FL00000000", "", ""), http.StatusNotFound, "RESERVATION_NOT_FOUND")
	assertFailure(t, h.do(http.MethodGet, "/api/reservations/flight/1/available-seats?class=coach", "", ""), http.StatusBadRequest, "VALIDATION_ERROR")
	assertFailure(t, h.do(http.MethodGet, "/api/flights/search?date=14-03-2026", "", ""), http.StatusBadRequest, "VALIDATION_ERROR")
	assertFailure(t, h.do(http.MethodGet, "/api/payments/transaction/TXN0_NONE", "", ""), http.StatusNotFound, "PAYMENT_NOT_FOUND")
}

func TestSeatAdministrationOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.createFlight()

	assertFailure(t, h.do(http.MethodPost, "/api/seats/flight/1/1a/block", "", ""), http.StatusUnauthorized, "UNAUTHORIZED")

	rec := h.do(http.MethodPost, "/api/seats/flight/1/1a/block", "", h.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BLOCKED", decode(t, rec)["status"])
	assertFailure(t, h.do(http.MethodPost, "/api/seats/flight/1/1A/block", "", h.admin), http.StatusBadRequest, "INVALID_STATE")

	rec = h.do(http.MethodGet, "/api/reservations/flight/1/available-seats?class=first", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var seats []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seats))
	assert.Len(t, seats, 11)

	rec = h.do(http.MethodPost, "/api/flights/1/sync", "", h.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	sync := decode(t, rec)
	assert.Equal(t, float64(11), sync["before"])
	assert.Equal(t, float64(11), sync["after"])
}

func TestAdminBookingWithoutPayment(t *testing.T) {
	h := newHarness(t)
	h.createFlight()

	body := `{"passenger_name":"Ops","passenger_email":"ops@example.com","passenger_phone":"1"}`
	assertFailure(t, h.do(http.MethodPost, "/api/reservations/flight/1", body, h.user), http.StatusForbidden, "FORBIDDEN")

	rec := h.do(http.MethodPost, "/api/reservations/flight/1", body, h.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode(t, rec)
	assert.Equal(t, "CONFIRMED", r["status"])
	assert.Equal(t, "ops@example.com", r["created_by"])

	id := int(r["id"].(float64))
	rec = h.do(http.MethodGet, "/api/payments/reservation/"+strconv.Itoa(id), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	payment := `{"reservation_id":` + strconv.Itoa(id) + `,"card_number":"4111111111111111","card_holder_name":"OPS","amount":199.99}`
	rec = h.do(http.MethodPost, "/api/payments/process", payment, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode(t, rec)
	assert.Equal(t, "SUCCESS", receipt["status"])
	assert.Equal(t, "1111", receipt["card_last_four"])
	assertFailure(t, h.do(http.MethodPost, "/api/payments/process", payment, ""), http.StatusBadRequest, "INVALID_STATE")

	rec = h.do(http.MethodGet, "/api/reservations", "", h.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}
