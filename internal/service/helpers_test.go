package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
	"github.com/iliyamo/flight-seat-reservation/internal/repository/memory"
)

const (
	validCard   = "4539 1488 0343 6467"
	invalidCard = "4539 1488 0343 6466"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.BookingEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	store     *memory.Store
	counter   *FlightCounter
	inventory *SeatInventory
	payments  *PaymentProcessor
	flights   *FlightService
	coord     *ReservationCoordinator
	notifier  *recordingNotifier
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newEnv(t *testing.T, opts ...memory.Option) *env {
	t.Helper()
	log := quietLogger()
	store := memory.New(opts...)
	counter := NewFlightCounter(store, log)
	inventory := NewSeatInventory(store, counter, DefaultClaimAttempts, log)
	payments := NewPaymentProcessor(store, log)
	notifier := &recordingNotifier{}
	return &env{
		store:     store,
		counter:   counter,
		inventory: inventory,
		payments:  payments,
		flights:   NewFlightService(store, inventory, log),
		coord:     NewReservationCoordinator(store, inventory, counter, payments, notifier, log),
		notifier:  notifier,
	}
}

func (e *env) flight(t *testing.T, number string, seats int) *model.Flight {
	t.Helper()
	dep := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	f, err := e.flights.Create(context.Background(), FlightInput{
		FlightNumber:  number,
		Origin:        "LHR",
		Destination:   "JFK",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(8 * time.Hour),
		Price:         model.Cents(19999),
		TotalSeats:    seats,
	})
	require.NoError(t, err)
	return f
}

// bareFlight stores a flight without laying out its seats.
func (e *env) bareFlight(t *testing.T, number string, seats int) *model.Flight {
	t.Helper()
	dep := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	f := &model.Flight{
		FlightNumber:   number,
		Origin:         "LHR",
		Destination:    "JFK",
		DepartureTime:  dep,
		ArrivalTime:    dep.Add(time.Hour),
		Price:          model.Cents(10000),
		TotalSeats:     seats,
		AvailableSeats: seats,
	}
	require.NoError(t, e.store.Flights().Create(context.Background(), f))
	return f
}

func booking(class model.SeatClass) BookingRequest {
	return BookingRequest{
		PassengerName:      "Ada Lovelace",
		PassengerEmail:     "ada@example.com",
		PassengerPhone:     "+44 20 7946 0000",
		PreferredSeatClass: class,
		CardNumber:         validCard,
		CardHolderName:     "ADA LOVELACE",
	}
}

func (e *env) availableSeats(t *testing.T, flightID uint64) int {
	t.Helper()
	f, err := e.store.Flights().GetByID(context.Background(), flightID)
	require.NoError(t, err)
	return f.AvailableSeats
}

func (e *env) seat(t *testing.T, flightID uint64, number string) model.Seat {
	t.Helper()
	seats, err := e.store.Seats().ListByFlight(context.Background(), flightID)
	require.NoError(t, err)
	for _, s := range seats {
		if s.SeatNumber == number {
			return s
		}
	}
	t.Fatalf("seat %s not found on flight %d", number, flightID)
	return model.Seat{}
}

// checkInvariants verifies the store-wide booking invariants: counters
// match AVAILABLE seats, CONFIRMED reservations own only BOOKED seats,
// other reservations own none, no seat is shared, and every SUCCESS
// payment belongs to an existing reservation.
func checkInvariants(t *testing.T, store repository.Store) {
	t.Helper()
	ctx := context.Background()

	flights, err := store.Flights().List(ctx)
	require.NoError(t, err)
	for _, f := range flights {
		counts, err := store.Seats().Counts(ctx, f.ID)
		require.NoError(t, err)
		require.Equal(t, counts.Available, f.AvailableSeats, "flight %s counter", f.FlightNumber)
		require.LessOrEqual(t, f.AvailableSeats, f.TotalSeats)
		require.GreaterOrEqual(t, f.AvailableSeats, 0)

		seats, err := store.Seats().ListByFlight(ctx, f.ID)
		require.NoError(t, err)
		for _, s := range seats {
			if s.Status == model.SeatBooked {
				require.NotNil(t, s.ReservationID, "booked seat %s without owner", s.SeatNumber)
			} else {
				require.Nil(t, s.ReservationID, "unbooked seat %s with owner", s.SeatNumber)
			}
		}
	}

	reservations, err := store.Reservations().ListAll(ctx)
	require.NoError(t, err)
	owner := map[uint64]uint64{}
	for _, r := range reservations {
		seats, err := store.Seats().ListByReservation(ctx, r.ID)
		require.NoError(t, err)
		switch r.Status {
		case model.ReservationConfirmed:
			require.NotEmpty(t, seats, "confirmed reservation %s owns no seat", r.BookingReference)
			for _, s := range seats {
				require.Equal(t, model.SeatBooked, s.Status)
				prev, taken := owner[s.ID]
				require.False(t, taken, "seat %s owned by %d and %d", s.SeatNumber, prev, r.ID)
				owner[s.ID] = r.ID
			}
		default:
			require.Empty(t, seats, "%s reservation %s owns seats", r.Status, r.BookingReference)
		}
		payments, err := store.Payments().ListByReservation(ctx, r.ID)
		require.NoError(t, err)
		success := 0
		for _, p := range payments {
			if p.Status == model.PaymentSuccess {
				success++
			}
		}
		require.LessOrEqual(t, success, 1, "reservation %s has %d SUCCESS payments", r.BookingReference, success)
	}
}
