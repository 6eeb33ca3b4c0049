package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// referenceAttempts bounds retries when a generated booking reference
// collides with an existing one.
const referenceAttempts = 5

// Charger records a charge for a reservation inside the booking
// transaction.  A nil payment, a payment that is not SUCCESS or an
// error are all treated as a failed charge.
type Charger interface {
	ChargeTx(ctx context.Context, tx repository.Tx, req ChargeRequest) (*model.Payment, error)
}

// Notifier receives booking events after the transaction has committed.
type Notifier interface {
	Notify(ctx context.Context, event queue.BookingEvent)
}

// BookingRequest carries the passenger and card details of a booking.
type BookingRequest struct {
	PassengerName      string
	PassengerEmail     string
	PassengerPhone     string
	PreferredSeatClass model.SeatClass
	CardNumber         string
	CardHolderName     string
	CreatedBy          string
}

func (r *BookingRequest) normalize(withPayment bool) error {
	r.PassengerName = strings.TrimSpace(r.PassengerName)
	r.PassengerEmail = strings.TrimSpace(r.PassengerEmail)
	r.PassengerPhone = strings.TrimSpace(r.PassengerPhone)
	r.CardHolderName = strings.TrimSpace(r.CardHolderName)
	r.PreferredSeatClass = model.SeatClass(strings.ToUpper(strings.TrimSpace(string(r.PreferredSeatClass))))
	switch {
	case r.PassengerName == "":
		return invalid("passenger name is required")
	case r.PassengerEmail == "":
		return invalid("passenger email is required")
	case r.PassengerPhone == "":
		return invalid("passenger phone is required")
	}
	if _, err := mail.ParseAddress(r.PassengerEmail); err != nil {
		return invalid("passenger email %q is not a valid address", r.PassengerEmail)
	}
	if r.PreferredSeatClass == "" {
		r.PreferredSeatClass = model.ClassEconomy
	}
	if !r.PreferredSeatClass.Valid() {
		return invalid("unknown seat class %q", r.PreferredSeatClass)
	}
	if withPayment {
		if strings.TrimSpace(r.CardNumber) == "" {
			return invalid("card number is required")
		}
		if r.CardHolderName == "" {
			return invalid("card holder name is required")
		}
	}
	return nil
}

// claimFunc claims one seat for a reservation inside tx.
type claimFunc func(ctx context.Context, tx repository.Tx, flight *model.Flight, r *model.Reservation) (*model.Seat, error)

// ReservationCoordinator drives a reservation through PENDING to
// CONFIRMED or CANCELLED.  Every entry point is a single transaction;
// booking events are emitted only after it commits.
type ReservationCoordinator struct {
	store     repository.Store
	inventory *SeatInventory
	counter   *FlightCounter
	payments  Charger
	notifier  Notifier
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewReservationCoordinator wires the coordinator.  notifier may be nil.
func NewReservationCoordinator(store repository.Store, inventory *SeatInventory, counter *FlightCounter,
	payments Charger, notifier Notifier, log logrus.FieldLogger) *ReservationCoordinator {
	return &ReservationCoordinator{
		store:     store,
		inventory: inventory,
		counter:   counter,
		payments:  payments,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// CreateWithPayment books an automatically chosen seat after charging
// the flight price to the card.
func (c *ReservationCoordinator) CreateWithPayment(ctx context.Context, flightID uint64, req BookingRequest) (*model.Reservation, error) {
	return c.book(ctx, flightID, req, true, c.claimAuto)
}

// CreateWithSpecificSeat books the named seat after charging the card.
func (c *ReservationCoordinator) CreateWithSpecificSeat(ctx context.Context, flightID uint64, seatNumber string, req BookingRequest) (*model.Reservation, error) {
	seatNumber = strings.ToUpper(strings.TrimSpace(seatNumber))
	if seatNumber == "" {
		return nil, invalid("seat number is required")
	}
	return c.book(ctx, flightID, req, true, func(ctx context.Context, tx repository.Tx, flight *model.Flight, r *model.Reservation) (*model.Seat, error) {
		return c.inventory.ClaimSpecificTx(ctx, tx, flight.ID, seatNumber, r.ID)
	})
}

// CreateWithoutPayment confirms a reservation on an automatically chosen
// seat without charging.  It is an administrative override.
func (c *ReservationCoordinator) CreateWithoutPayment(ctx context.Context, flightID uint64, req BookingRequest) (*model.Reservation, error) {
	return c.book(ctx, flightID, req, false, c.claimAuto)
}

func (c *ReservationCoordinator) claimAuto(ctx context.Context, tx repository.Tx, flight *model.Flight, r *model.Reservation) (*model.Seat, error) {
	return c.inventory.ClaimAutoTx(ctx, tx, flight.ID, r.ID, r.PreferredSeatClass)
}

// book runs the booking workflow.  A failed charge, or a seat claim that
// fails after a successful charge, ends in a committed CANCELLED
// reservation and the failure is returned after the commit.  Failures
// before the reservation exists, and infrastructure failures anywhere,
// roll the whole transaction back.
func (c *ReservationCoordinator) book(ctx context.Context, flightID uint64, req BookingRequest, withPayment bool, claim claimFunc) (*model.Reservation, error) {
	if err := req.normalize(withPayment); err != nil {
		return nil, err
	}
	var (
		result  *model.Reservation
		flight  *model.Flight
		failure error
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result, failure = nil, nil
		// The flight row is locked before the reservation insert takes its
		// shared foreign-key lock on it.
		f, err := tx.Flights().GetByIDForUpdate(ctx, flightID)
		if err != nil {
			return translate(err)
		}
		if _, err := c.inventory.InitializeTx(ctx, tx, f); err != nil {
			return err
		}
		counts, err := tx.Seats().Counts(ctx, flightID)
		if err != nil {
			return translate(err)
		}
		if counts.Available == 0 {
			return ErrSoldOut
		}

		r, err := c.createPending(ctx, tx, f, req)
		if err != nil {
			return err
		}

		if withPayment {
			if perr := c.charge(ctx, tx, r, req, f.Price); perr != nil {
				if retriable(perr) {
					return perr
				}
				failure = perr
				_, err := c.cancelTx(ctx, tx, r)
				return err
			}
		}

		if _, cerr := claim(ctx, tx, f, r); cerr != nil {
			if !withPayment || !claimFailure(cerr) {
				return cerr
			}
			failure = cerr
			_, err := c.cancelTx(ctx, tx, r)
			return err
		}
		if flight, err = c.counter.SyncTx(ctx, tx, flightID); err != nil {
			return err
		}
		if err := c.transition(ctx, tx, r, model.ReservationConfirmed); err != nil {
			return err
		}
		seats, err := tx.Seats().ListByReservation(ctx, r.ID)
		if err != nil {
			return translate(err)
		}
		r.AttachSeats(seats)
		result = r
		return nil
	})
	if err != nil {
		return nil, asSystem(err)
	}
	if failure != nil {
		c.log.WithFields(logrus.Fields{
			"flight_id": flightID,
			"kind":      Kind(failure),
		}).WithError(failure).Warn("booking cancelled")
		return nil, failure
	}
	c.log.WithFields(logrus.Fields{
		"booking_reference": result.BookingReference,
		"flight_id":         flightID,
		"seats":             result.SeatNumbers,
		"paid":              withPayment,
	}).Info("reservation confirmed")
	c.notify(ctx, queue.EventBookingConfirmed, result, flight)
	return result, nil
}

func claimFailure(err error) bool {
	return errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrNoSeatsAvailable)
}

func (c *ReservationCoordinator) createPending(ctx context.Context, tx repository.Tx, f *model.Flight, req BookingRequest) (*model.Reservation, error) {
	r := &model.Reservation{
		PassengerName:      req.PassengerName,
		PassengerEmail:     req.PassengerEmail,
		PassengerPhone:     req.PassengerPhone,
		FlightID:           f.ID,
		BookingDate:        c.now().UTC(),
		TotalAmount:        f.Price,
		PreferredSeatClass: req.PreferredSeatClass,
		Status:             model.ReservationPending,
	}
	if req.CreatedBy != "" {
		by := req.CreatedBy
		r.CreatedBy = &by
	}
	for i := 0; i < referenceAttempts; i++ {
		r.BookingReference = NewBookingReference()
		err := tx.Reservations().Create(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, translate(err)
		}
	}
	return nil, fmt.Errorf("could not allocate a unique booking reference after %d attempts", referenceAttempts)
}

// charge runs the payment and folds every non-success outcome into a
// PaymentError.  Lock timeouts are passed through untouched so the
// caller can roll back.
func (c *ReservationCoordinator) charge(ctx context.Context, tx repository.Tx, r *model.Reservation, req BookingRequest, amount model.Money) error {
	payment, err := c.payments.ChargeTx(ctx, tx, ChargeRequest{
		ReservationID:  r.ID,
		CardNumber:     req.CardNumber,
		CardHolderName: req.CardHolderName,
		Amount:         amount,
	})
	switch {
	case err != nil && retriable(err):
		return err
	case err != nil:
		return &PaymentError{Reason: err}
	case payment == nil:
		return &PaymentError{Reason: errors.New("processor returned no payment")}
	case payment.Status != model.PaymentSuccess:
		reason := fmt.Sprintf("payment %s ended %s", payment.TransactionID, payment.Status)
		if payment.FailureReason != nil {
			reason += ": " + *payment.FailureReason
		}
		return &PaymentError{Reason: errors.New(reason)}
	}
	return nil
}

// transition records a reservation status change.  It is the only place
// reservation status is written.
func (c *ReservationCoordinator) transition(ctx context.Context, tx repository.Tx, r *model.Reservation, to model.ReservationStatus) error {
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("%w: reservation %s cannot move from %s to %s", ErrInvalidState, r.BookingReference, r.Status, to)
	}
	if err := tx.Reservations().UpdateStatus(ctx, r.ID, r.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: reservation %s changed concurrently", ErrInvalidState, r.BookingReference)
		}
		return translate(err)
	}
	r.Status = to
	return nil
}

// cancelTx cancels a reservation, frees its seats and returns the
// flight with its recomputed counter.
func (c *ReservationCoordinator) cancelTx(ctx context.Context, tx repository.Tx, r *model.Reservation) (*model.Flight, error) {
	if err := c.transition(ctx, tx, r, model.ReservationCancelled); err != nil {
		return nil, err
	}
	if _, err := c.inventory.ReleaseTx(ctx, tx, r.ID); err != nil {
		return nil, err
	}
	r.AttachSeats(nil)
	return c.counter.SyncTx(ctx, tx, r.FlightID)
}

// lockReservation locks the reservation's flight and then the
// reservation itself, re-reading it under the lock.  Every writer takes
// the flight row first.
func (c *ReservationCoordinator) lockReservation(ctx context.Context, tx repository.Tx, ref string) (*model.Reservation, error) {
	found, err := tx.Reservations().GetByReference(ctx, ref)
	if err != nil {
		return nil, translate(err)
	}
	if _, err := tx.Flights().GetByIDForUpdate(ctx, found.FlightID); err != nil {
		return nil, translate(err)
	}
	found, err = tx.Reservations().GetByReferenceForUpdate(ctx, ref)
	if err != nil {
		return nil, translate(err)
	}
	return found, nil
}

// Cancel cancels the reservation with the given booking reference and
// returns its seats to sale.  It reports false when no active
// reservation has that reference, which makes repeated calls harmless.
func (c *ReservationCoordinator) Cancel(ctx context.Context, ref string) (bool, error) {
	var (
		r      *model.Reservation
		flight *model.Flight
		seats  []string
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, flight, seats = nil, nil, nil
		found, err := c.lockReservation(ctx, tx, ref)
		if err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				return nil
			}
			return err
		}
		if found.Status == model.ReservationCancelled {
			return nil
		}
		owned, err := tx.Seats().ListByReservation(ctx, found.ID)
		if err != nil {
			return translate(err)
		}
		for _, s := range owned {
			seats = append(seats, s.SeatNumber)
		}
		if flight, err = c.cancelTx(ctx, tx, found); err != nil {
			return err
		}
		r = found
		return nil
	})
	if err != nil {
		return false, asSystem(err)
	}
	if r == nil {
		return false, nil
	}
	c.log.WithFields(logrus.Fields{
		"booking_reference": r.BookingReference,
		"released":          seats,
	}).Info("reservation cancelled")
	r.SeatNumbers = seats
	c.notify(ctx, queue.EventBookingCancelled, r, flight)
	return true, nil
}

// ChangeSeat moves a CONFIRMED reservation to another seat on the same
// flight.  The new seat is claimed before the old ones are released, so
// a failed claim leaves the reservation on its original seat.
func (c *ReservationCoordinator) ChangeSeat(ctx context.Context, ref, newSeatNumber string) (*model.Reservation, error) {
	newSeatNumber = strings.ToUpper(strings.TrimSpace(newSeatNumber))
	if newSeatNumber == "" {
		return nil, invalid("seat number is required")
	}
	var (
		r       *model.Reservation
		flight  *model.Flight
		changed bool
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, flight, changed = nil, nil, false
		found, err := c.lockReservation(ctx, tx, ref)
		if err != nil {
			return err
		}
		if found.Status != model.ReservationConfirmed {
			return fmt.Errorf("%w: reservation %s is %s", ErrInvalidState, found.BookingReference, found.Status)
		}
		current, err := tx.Seats().ListByReservation(ctx, found.ID)
		if err != nil {
			return translate(err)
		}
		for _, s := range current {
			if s.SeatNumber == newSeatNumber {
				found.AttachSeats(current)
				r = found
				return nil
			}
		}
		seat, err := c.inventory.ClaimSpecificTx(ctx, tx, found.FlightID, newSeatNumber, found.ID)
		if err != nil {
			return err
		}
		if _, err := c.inventory.ReleaseTx(ctx, tx, found.ID, seat.ID); err != nil {
			return err
		}
		if flight, err = c.counter.SyncTx(ctx, tx, found.FlightID); err != nil {
			return err
		}
		seats, err := tx.Seats().ListByReservation(ctx, found.ID)
		if err != nil {
			return translate(err)
		}
		found.AttachSeats(seats)
		r, changed = found, true
		return nil
	})
	if err != nil {
		return nil, asSystem(err)
	}
	if changed {
		c.log.WithFields(logrus.Fields{
			"booking_reference": r.BookingReference,
			"seats":             r.SeatNumbers,
		}).Info("seat changed")
		c.notify(ctx, queue.EventSeatChanged, r, flight)
	}
	return r, nil
}

// ByBookingReference returns a reservation with its seats.
func (c *ReservationCoordinator) ByBookingReference(ctx context.Context, ref string) (*model.Reservation, error) {
	r, err := c.store.Reservations().GetByReference(ctx, ref)
	if err != nil {
		return nil, translate(err)
	}
	seats, err := c.store.Seats().ListByReservation(ctx, r.ID)
	if err != nil {
		return nil, translate(err)
	}
	r.AttachSeats(seats)
	return r, nil
}

// ByPassengerEmail returns a passenger's reservations, newest first.
func (c *ReservationCoordinator) ByPassengerEmail(ctx context.Context, email string) ([]model.Reservation, error) {
	list, err := c.store.Reservations().ListByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, translate(err)
	}
	return c.withSeats(ctx, list)
}

// ListAll returns every reservation with its seats.
func (c *ReservationCoordinator) ListAll(ctx context.Context) ([]model.Reservation, error) {
	list, err := c.store.Reservations().ListAll(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return c.withSeats(ctx, list)
}

func (c *ReservationCoordinator) withSeats(ctx context.Context, list []model.Reservation) ([]model.Reservation, error) {
	ids := make([]uint64, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	byID, err := c.store.Seats().ListByReservations(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}
	for i := range list {
		list[i].AttachSeats(byID[list[i].ID])
	}
	return list, nil
}

// Flight returns the flight a reservation belongs to.
func (c *ReservationCoordinator) Flight(ctx context.Context, r *model.Reservation) (*model.Flight, error) {
	f, err := c.store.Flights().GetByID(ctx, r.FlightID)
	if err != nil {
		return nil, translate(err)
	}
	return f, nil
}

func (c *ReservationCoordinator) notify(ctx context.Context, kind string, r *model.Reservation, f *model.Flight) {
	if c.notifier == nil || r == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:             kind,
		ReservationID:    r.ID,
		BookingReference: r.BookingReference,
		FlightID:         r.FlightID,
		PassengerName:    r.PassengerName,
		PassengerEmail:   r.PassengerEmail,
		SeatNumbers:      r.SeatNumbers,
		TotalAmount:      r.TotalAmount,
		Status:           string(r.Status),
		OccurredAt:       c.now().UTC().Format(time.RFC3339),
	}
	if f != nil {
		ev.FlightNumber = f.FlightNumber
		ev.Origin = f.Origin
		ev.Destination = f.Destination
		ev.DepartureTime = f.DepartureTime.UTC().Format(time.RFC3339)
	}
	c.notifier.Notify(ctx, ev)
}
