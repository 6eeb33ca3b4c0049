package repository

import (
	"context"
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// FlightRepository persists flights and their derived seat counter.
type FlightRepository interface {
	Create(ctx context.Context, f *model.Flight) error
	GetByID(ctx context.Context, id uint64) (*model.Flight, error)
	// GetByIDForUpdate reads the flight and holds its row lock until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Flight, error)
	List(ctx context.Context) ([]model.Flight, error)
	// Search matches origin and destination case-insensitively; a zero
	// day matches any departure date.
	Search(ctx context.Context, origin, destination string, day time.Time) ([]model.Flight, error)
	Origins(ctx context.Context) ([]string, error)
	Destinations(ctx context.Context) ([]string, error)
	SetAvailableSeats(ctx context.Context, id uint64, n int) error
}

// SeatRepository persists the authoritative per-seat state.
type SeatRepository interface {
	CreateBulk(ctx context.Context, seats []model.Seat) error
	ListByFlight(ctx context.Context, flightID uint64) ([]model.Seat, error)
	// ListAvailable returns AVAILABLE seats of a flight; an empty class
	// matches every class.
	ListAvailable(ctx context.Context, flightID uint64, class model.SeatClass) ([]model.Seat, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Seat, error)
	ListByReservations(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Seat, error)
	GetByNumberForUpdate(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error)
	// UpdateStatus moves a seat from one status to another and sets its
	// owner.  It returns ErrConflict when the seat is no longer in from.
	UpdateStatus(ctx context.Context, id uint64, from, to model.SeatStatus, reservationID *uint64) error
	// ReleaseByReservation returns every seat owned by the reservation to
	// AVAILABLE, except the ids listed in keep, and reports how many
	// seats changed.
	ReleaseByReservation(ctx context.Context, reservationID uint64, keep ...uint64) (int, error)
	Counts(ctx context.Context, flightID uint64) (model.SeatCounts, error)
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByReference(ctx context.Context, ref string) (*model.Reservation, error)
	GetByReferenceForUpdate(ctx context.Context, ref string) (*model.Reservation, error)
	ListByEmail(ctx context.Context, email string) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
	// UpdateStatus is a compare-and-set on the status column; it returns
	// ErrConflict when the reservation is no longer in from.
	UpdateStatus(ctx context.Context, id uint64, from, to model.ReservationStatus) error
}

// PaymentRepository persists payment records.  Payments are never
// updated once written.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByTransactionID(ctx context.Context, txID string) (*model.Payment, error)
	// ListByReservation returns payments newest first.
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	HasSuccessful(ctx context.Context, reservationID uint64) (bool, error)
	// ListUnreconciled returns SUCCESS payments whose reservation ended
	// CANCELLED.
	ListUnreconciled(ctx context.Context) ([]model.Payment, error)
}

// Tx groups the repositories bound to one unit of work.
type Tx interface {
	Flights() FlightRepository
	Seats() SeatRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
}

// Store is the persistence entry point.  Its embedded Tx answers reads
// outside any transaction; WithinTx runs fn in a transaction that is
// committed when fn returns nil and rolled back otherwise.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}
