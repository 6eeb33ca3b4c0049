// Package memory is an in-process implementation of repository.Store.
//
// Transactions are fully serialized: WithinTx holds the store lock for
// the duration of fn, works on a private copy of the data and publishes
// the copy only when fn succeeds.  Reads outside a transaction take the
// same lock per call.  Waiting for the lock honours the caller's context
// and an optional lock wait bound, and a timed-out wait is reported as
// repository.ErrLockTimeout just like a MySQL lock wait timeout.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

type state struct {
	flights      map[uint64]model.Flight
	seats        map[uint64]model.Seat
	reservations map[uint64]model.Reservation
	payments     map[uint64]model.Payment

	lastFlight, lastSeat, lastReservation, lastPayment uint64
}

func newState() *state {
	return &state{
		flights:      map[uint64]model.Flight{},
		seats:        map[uint64]model.Seat{},
		reservations: map[uint64]model.Reservation{},
		payments:     map[uint64]model.Payment{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.flights = make(map[uint64]model.Flight, len(s.flights))
	for k, v := range s.flights {
		c.flights[k] = v
	}
	c.seats = make(map[uint64]model.Seat, len(s.seats))
	for k, v := range s.seats {
		c.seats[k] = v
	}
	c.reservations = make(map[uint64]model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	c.payments = make(map[uint64]model.Payment, len(s.payments))
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return &c
}

// Option configures a Store.
type Option func(*Store)

// WithLockWait bounds how long a caller waits for the store lock.
func WithLockWait(d time.Duration) Option { return func(s *Store) { s.lockWait = d } }

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Store keeps flights, seats, reservations and payments in memory.
type Store struct {
	sem      chan struct{}
	st       *state
	lockWait time.Duration
	now      func() time.Time
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{sem: make(chan struct{}, 1), st: newState(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.lockWait > 0 {
		t := time.NewTimer(s.lockWait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Join(repository.ErrLockTimeout, ctx.Err())
	case <-timeout:
		return repository.ErrLockTimeout
	}
}

func (s *Store) release() { <-s.sem }

// WithinTx runs fn against a private copy of the data and publishes the
// copy when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	work := s.st.clone()
	if err := fn(ctx, handle{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) auto() handle { return handle{store: s, now: s.now} }

func (s *Store) Flights() repository.FlightRepository           { return flights{s.auto()} }
func (s *Store) Seats() repository.SeatRepository               { return seats{s.auto()} }
func (s *Store) Reservations() repository.ReservationRepository { return reservations{s.auto()} }
func (s *Store) Payments() repository.PaymentRepository         { return payments{s.auto()} }

// handle is either bound to a transaction's working copy (st) or, when
// store is set, locks the store around every call.
type handle struct {
	store *Store
	st    *state
	now   func() time.Time
}

func (h handle) begin(ctx context.Context) (*state, func(), error) {
	if h.store == nil {
		return h.st, func() {}, nil
	}
	if err := h.store.acquire(ctx); err != nil {
		return nil, nil, err
	}
	return h.store.st, h.store.release, nil
}

func (h handle) Flights() repository.FlightRepository           { return flights{h} }
func (h handle) Seats() repository.SeatRepository               { return seats{h} }
func (h handle) Reservations() repository.ReservationRepository { return reservations{h} }
func (h handle) Payments() repository.PaymentRepository         { return payments{h} }
