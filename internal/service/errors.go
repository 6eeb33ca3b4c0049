package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Error kinds surfaced by the booking core.  Handlers translate them into
// HTTP responses through Kind.
var (
	ErrFlightNotFound      = errors.New("flight not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrSoldOut             = errors.New("flight is sold out")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatUnavailable     = errors.New("seat is not available")
	ErrNoSeatsAvailable    = errors.New("no seats available")
	ErrInvalidCard         = errors.New("invalid card number")
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrSystem              = errors.New("system error")
)

// PaymentError reports a failed charge and carries the processor's reason.
// errors.Is matches both ErrPaymentFailed and the reason chain.
type PaymentError struct {
	Reason error
}

func (e *PaymentError) Error() string {
	if e.Reason == nil {
		return ErrPaymentFailed.Error()
	}
	return ErrPaymentFailed.Error() + ": " + e.Reason.Error()
}

func (e *PaymentError) Unwrap() []error { return []error{ErrPaymentFailed, e.Reason} }

// SystemError marks a retriable infrastructure failure such as a lock
// wait timeout or a deadlock.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string { return ErrSystem.Error() + ": " + e.Err.Error() }

func (e *SystemError) Unwrap() []error { return []error{ErrSystem, e.Err} }

// invalid wraps ErrValidation with a message.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// retriable reports whether err is a transient persistence failure.
func retriable(err error) bool {
	return errors.Is(err, repository.ErrLockTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// asSystem wraps retriable failures in SystemError and leaves the rest alone.
func asSystem(err error) error {
	if err == nil || errors.Is(err, ErrSystem) {
		return err
	}
	if retriable(err) {
		return &SystemError{Err: err}
	}
	return err
}

// translate maps repository sentinels onto service kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrFlightNotFound):
		return ErrFlightNotFound
	case errors.Is(err, repository.ErrReservationNotFound):
		return ErrReservationNotFound
	case errors.Is(err, repository.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repository.ErrSeatNotFound):
		return ErrSeatNotFound
	}
	return asSystem(err)
}

// kinds is checked in order, most specific first, so a payment failure
// caused by an invalid card reports INVALID_CARD.
var kinds = []struct {
	err  error
	name string
}{
	{ErrSystem, "SYSTEM_ERROR"},
	{ErrInvalidCard, "INVALID_CARD"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrPaymentFailed, "PAYMENT_FAILED"},
	{ErrFlightNotFound, "FLIGHT_NOT_FOUND"},
	{ErrReservationNotFound, "RESERVATION_NOT_FOUND"},
	{ErrPaymentNotFound, "PAYMENT_NOT_FOUND"},
	{ErrSoldOut, "SOLD_OUT"},
	{ErrSeatNotFound, "SEAT_NOT_FOUND"},
	{ErrSeatUnavailable, "SEAT_UNAVAILABLE"},
	{ErrNoSeatsAvailable, "NO_SEATS_AVAILABLE"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrConflict, "CONFLICT"},
}

// Kind names the error kind of err, or "INTERNAL_ERROR" when err is not
// a known booking error.
func Kind(err error) string {
	if retriable(err) {
		return "SYSTEM_ERROR"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "INTERNAL_ERROR"
}

// IsNotFound reports whether err is one of the lookup misses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlightNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
