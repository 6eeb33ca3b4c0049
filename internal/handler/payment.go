package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// PaymentHandler exposes direct payments, payment lookups and the
// reconciliation report.
type PaymentHandler struct {
	Payments *service.PaymentProcessor
	Log      logrus.FieldLogger
}

func NewPaymentHandler(p *service.PaymentProcessor, log logrus.FieldLogger) *PaymentHandler {
	if p == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p, Log: log}
}

type paymentRequest struct {
	ReservationID  uint64      `json:"reservation_id"`
	CardNumber     string      `json:"card_number"`
	CardHolderName string      `json:"card_holder_name"`
	Amount         model.Money `json:"amount"`
}

// receipt is the public view of a payment; it never carries card digits
// beyond the last four.
type receipt struct {
	TransactionID  string              `json:"transaction_id"`
	ReservationID  uint64              `json:"reservation_id"`
	Amount         model.Money         `json:"amount"`
	Status         model.PaymentStatus `json:"status"`
	CardLastFour   string              `json:"card_last_four"`
	CardHolderName string              `json:"card_holder_name"`
	Response       string              `json:"gateway_response"`
}

// Process handles POST /api/payments/process.
func (h *PaymentHandler) Process(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ReservationID == 0 {
		return badRequest(c, "reservation_id is required")
	}
	p, err := h.Payments.Process(c.Request().Context(), service.ChargeRequest{
		ReservationID:  req.ReservationID,
		CardNumber:     req.CardNumber,
		CardHolderName: req.CardHolderName,
		Amount:         req.Amount,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, receipt{
		TransactionID:  p.TransactionID,
		ReservationID:  p.ReservationID,
		Amount:         p.Amount,
		Status:         p.Status,
		CardLastFour:   p.CardLastFour,
		CardHolderName: p.CardHolderName,
		Response:       p.GatewayResponse,
	})
}

// ByTransaction handles GET /api/payments/transaction/:transactionId.
func (h *PaymentHandler) ByTransaction(c echo.Context) error {
	p, err := h.Payments.FindByTransactionID(c.Request().Context(), c.Param("transactionId"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ByReservation handles GET /api/payments/reservation/:reservationId.
func (h *PaymentHandler) ByReservation(c echo.Context) error {
	id, err := parseID(c, "reservationId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := h.Payments.ListForReservation(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Unreconciled handles GET /api/admin/payments/unreconciled.
func (h *PaymentHandler) Unreconciled(c echo.Context) error {
	list, err := h.Payments.ListUnreconciled(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(list), "payments": list})
}
