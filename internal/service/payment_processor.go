package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// GatewayApproved is recorded on every approved charge.
const GatewayApproved = "APPROVED"

// ChargeRequest is the card material and amount for one charge.
type ChargeRequest struct {
	ReservationID  uint64
	CardNumber     string
	CardHolderName string
	Amount         model.Money
}

// PaymentProcessor validates card details and records the outcome.  It
// does not talk to a real gateway: a valid card and a positive amount are
// always approved.
type PaymentProcessor struct {
	store repository.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewPaymentProcessor builds a PaymentProcessor.
func NewPaymentProcessor(store repository.Store, log logrus.FieldLogger) *PaymentProcessor {
	return &PaymentProcessor{store: store, log: log, now: time.Now}
}

// CleanCardNumber strips spaces and dashes and verifies that 13 to 19
// digits remain and that they pass the Luhn check.
func CleanCardNumber(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, raw)
	if len(digits) < 13 || len(digits) > 19 {
		return "", ErrInvalidCard
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidCard
		}
	}
	if !Luhn(digits) {
		return "", ErrInvalidCard
	}
	return digits, nil
}

// Luhn reports whether a string of decimal digits passes the Luhn
// checksum: from the rightmost digit, every second digit is doubled and
// doubled values above 9 contribute the sum of their digits.
func Luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d = d/10 + d%10
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func validateCharge(req ChargeRequest) (string, error) {
	digits, err := CleanCardNumber(req.CardNumber)
	if err != nil {
		return "", err
	}
	if req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	return digits, nil
}

// ChargeTx validates the request and appends an approved payment inside tx.
func (p *PaymentProcessor) ChargeTx(ctx context.Context, tx repository.Tx, req ChargeRequest) (*model.Payment, error) {
	digits, err := validateCharge(req)
	if err != nil {
		return nil, err
	}
	now := p.now().UTC()
	payment := &model.Payment{
		ReservationID:   req.ReservationID,
		TransactionID:   NewTransactionID(now),
		Method:          model.PaymentCreditCard,
		Amount:          req.Amount,
		Status:          model.PaymentSuccess,
		PaymentDate:     now,
		ProcessedDate:   &now,
		CardLastFour:    digits[len(digits)-4:],
		CardHolderName:  req.CardHolderName,
		GatewayResponse: GatewayApproved,
	}
	if err := tx.Payments().Create(ctx, payment); err != nil {
		return nil, translate(err)
	}
	p.log.WithFields(logrus.Fields{
		"reservation_id": payment.ReservationID,
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount.String(),
	}).Info("payment recorded")
	return payment, nil
}

// Process charges an existing reservation outside the booking flow.  The
// reservation row is locked so two concurrent charges cannot both record
// a SUCCESS payment.
func (p *PaymentProcessor) Process(ctx context.Context, req ChargeRequest) (*model.Payment, error) {
	if _, err := validateCharge(req); err != nil {
		return nil, err
	}
	var payment *model.Payment
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Reservations().GetByIDForUpdate(ctx, req.ReservationID); err != nil {
			return translate(err)
		}
		paid, err := tx.Payments().HasSuccessful(ctx, req.ReservationID)
		if err != nil {
			return translate(err)
		}
		if paid {
			return errors.Join(ErrInvalidState, errors.New("reservation already has a successful payment"))
		}
		payment, err = p.ChargeTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, asSystem(err)
	}
	return payment, nil
}

// FindByTransactionID looks a payment up by its transaction id.
func (p *PaymentProcessor) FindByTransactionID(ctx context.Context, txID string) (*model.Payment, error) {
	payment, err := p.store.Payments().GetByTransactionID(ctx, txID)
	if err != nil {
		return nil, translate(err)
	}
	return payment, nil
}

// ListForReservation returns a reservation's payments, newest first.
func (p *PaymentProcessor) ListForReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	list, err := p.store.Payments().ListByReservation(ctx, reservationID)
	return list, translate(err)
}

// ListUnreconciled returns SUCCESS payments whose reservation was
// cancelled; each one needs an out-of-band refund.
func (p *PaymentProcessor) ListUnreconciled(ctx context.Context) ([]model.Payment, error) {
	list, err := p.store.Payments().ListUnreconciled(ctx)
	return list, translate(err)
}
