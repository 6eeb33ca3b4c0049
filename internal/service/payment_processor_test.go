package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

func TestLuhn(t *testing.T) {
	assert.True(t, Luhn("4539148803436467"))
	assert.True(t, Luhn("4111111111111111"))
	assert.False(t, Luhn("4539148803436466"))
	assert.False(t, Luhn("4111111111111112"))
}

func TestCleanCardNumber(t *testing.T) {
	digits, err := CleanCardNumber(" 4539-1488-0343-6467 ")
	require.NoError(t, err)
	assert.Equal(t, "4539148803436467", digits)

	for _, bad := range []string{
		"",
		"4539 1488 0343 6466",
		"411111111111",         // 12 digits
		"41111111111111111111", // 20 digits
		"4111 1111 1111 111x",
		"4539\t1488\t0343\t6467",
		"4539148803436467\n",
	} {
		_, err := CleanCardNumber(bad)
		assert.ErrorIs(t, err, ErrInvalidCard, bad)
	}
}

func TestChargeTxRecordsApprovedPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.flight(t, "FL300", 6)
	r := e.pendingReservation(t, f.ID)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.payments.now = func() time.Time { return fixed }

	var p *model.Payment
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = e.payments.ChargeTx(ctx, tx, ChargeRequest{
			ReservationID:  r.ID,
			CardNumber:     validCard,
			CardHolderName: "GRACE HOPPER",
			Amount:         model.Cents(4500),
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, model.PaymentSuccess, p.Status)
	assert.Equal(t, model.PaymentCreditCard, p.Method)
	assert.Equal(t, GatewayApproved, p.GatewayResponse)
	assert.Equal(t, "6467", p.CardLastFour)
	assert.True(t, strings.HasPrefix(p.TransactionID, "TXN1767323045000_"), p.TransactionID)
	require.NotNil(t, p.ProcessedDate)
	assert.True(t, fixed.Equal(*p.ProcessedDate))

	found, err := e.payments.FindByTransactionID(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func TestProcessRefusesSecondSuccessfulPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.flight(t, "FL301", 6)

	req := booking(model.ClassFirst)
	req.CardNumber, req.CardHolderName = "", ""
	r, err := e.coord.CreateWithoutPayment(ctx, f.ID, req)
	require.NoError(t, err)

	charge := ChargeRequest{ReservationID: r.ID, CardNumber: validCard, CardHolderName: "ADA", Amount: r.TotalAmount}
	p, err := e.payments.Process(ctx, charge)
	require.NoError(t, err)
	assert.Equal(t, r.ID, p.ReservationID)

	_, err = e.payments.Process(ctx, charge)
	assert.ErrorIs(t, err, ErrInvalidState)

	list, err := e.payments.ListForReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	checkInvariants(t, e.store)
}

func TestProcessRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.payments.Process(ctx, ChargeRequest{ReservationID: 1, CardNumber: validCard, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, "INVALID_AMOUNT", Kind(err))

	_, err = e.payments.Process(ctx, ChargeRequest{ReservationID: 1, CardNumber: invalidCard, Amount: 100})
	assert.ErrorIs(t, err, ErrInvalidCard)

	_, err = e.payments.Process(ctx, ChargeRequest{ReservationID: 42, CardNumber: validCard, Amount: 100})
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = e.payments.FindByTransactionID(ctx, "TXN0_MISSING")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestIdentifiers(t *testing.T) {
	assert.Regexp(t, `^FL[0-9A-F]{8}$`, NewBookingReference())
	now := time.UnixMilli(1700000000123)
	assert.Regexp(t, `^TXN1700000000123_[0-9A-F]{8}$`, NewTransactionID(now))
	assert.NotEqual(t, NewBookingReference(), NewBookingReference())
}
