package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// DefaultClaimAttempts bounds how many candidates an automatic claim
// tries when the first choices are taken by concurrent bookings.
const DefaultClaimAttempts = 3

// SeatInventory owns per-seat state: layout generation, availability
// queries and the locked compare-and-set claims.  The ...Tx methods run
// inside a caller's transaction; the others open their own.
type SeatInventory struct {
	store    repository.Store
	counter  *FlightCounter
	attempts int
	log      logrus.FieldLogger
}

// NewSeatInventory builds a SeatInventory.  attempts below 1 falls back
// to DefaultClaimAttempts.
func NewSeatInventory(store repository.Store, counter *FlightCounter, attempts int, log logrus.FieldLogger) *SeatInventory {
	if attempts < 1 {
		attempts = DefaultClaimAttempts
	}
	return &SeatInventory{store: store, counter: counter, attempts: attempts, log: log}
}

// InitializeTx creates the seat layout for a flight that has none and
// returns the number of seats created.  It is idempotent: a flight that
// already has seats is left untouched, and losing an insert race to a
// concurrent initializer is not an error.
func (s *SeatInventory) InitializeTx(ctx context.Context, tx repository.Tx, flight *model.Flight) (int, error) {
	if flight.TotalSeats < 1 {
		return 0, invalid("flight %s has no seat capacity", flight.FlightNumber)
	}
	counts, err := tx.Seats().Counts(ctx, flight.ID)
	if err != nil {
		return 0, translate(err)
	}
	if counts.Total > 0 {
		return 0, nil
	}
	// Serialize initializers on the flight row, then re-check.  Booking
	// callers already hold this lock.
	if _, err := tx.Flights().GetByIDForUpdate(ctx, flight.ID); err != nil {
		return 0, translate(err)
	}
	if counts, err = tx.Seats().Counts(ctx, flight.ID); err != nil {
		return 0, translate(err)
	}
	if counts.Total > 0 {
		return 0, nil
	}
	seats := model.GenerateSeats(flight.ID, flight.TotalSeats)
	if err := tx.Seats().CreateBulk(ctx, seats); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, nil
		}
		return 0, translate(err)
	}
	if _, err := s.counter.SyncTx(ctx, tx, flight.ID); err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{
		"flight_id":     flight.ID,
		"flight_number": flight.FlightNumber,
		"seats":         len(seats),
		"rows":          model.TotalRows(flight.TotalSeats),
	}).Info("seats initialized")
	return len(seats), nil
}

// Initialize runs InitializeTx in its own transaction.
func (s *SeatInventory) Initialize(ctx context.Context, flightID uint64) (int, error) {
	var n int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		f, err := tx.Flights().GetByID(ctx, flightID)
		if err != nil {
			return translate(err)
		}
		n, err = s.InitializeTx(ctx, tx, f)
		return err
	})
	return n, asSystem(err)
}

func (s *SeatInventory) requireFlight(ctx context.Context, flightID uint64) error {
	if _, err := s.store.Flights().GetByID(ctx, flightID); err != nil {
		return translate(err)
	}
	return nil
}

// ListAvailable returns AVAILABLE seats in (class, seat number) order.
// An empty class lists every class.
func (s *SeatInventory) ListAvailable(ctx context.Context, flightID uint64, class model.SeatClass) ([]model.Seat, error) {
	if class != "" && !class.Valid() {
		return nil, invalid("unknown seat class %q", class)
	}
	if err := s.requireFlight(ctx, flightID); err != nil {
		return nil, err
	}
	seats, err := s.store.Seats().ListAvailable(ctx, flightID, class)
	return seats, translate(err)
}

// ListAll returns every seat of a flight in (class, seat number) order.
func (s *SeatInventory) ListAll(ctx context.Context, flightID uint64) ([]model.Seat, error) {
	if err := s.requireFlight(ctx, flightID); err != nil {
		return nil, err
	}
	seats, err := s.store.Seats().ListByFlight(ctx, flightID)
	return seats, translate(err)
}

// SeatMap returns the flight's seats grouped by row.
func (s *SeatInventory) SeatMap(ctx context.Context, flightID uint64) ([]model.SeatRow, error) {
	seats, err := s.ListAll(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return model.BuildSeatMap(seats), nil
}

// Counts returns (total, available, booked, blocked) for a flight.
func (s *SeatInventory) Counts(ctx context.Context, flightID uint64) (model.SeatCounts, error) {
	if err := s.requireFlight(ctx, flightID); err != nil {
		return model.SeatCounts{}, err
	}
	c, err := s.store.Seats().Counts(ctx, flightID)
	return c, translate(err)
}

// ClaimSpecificTx books the named seat for a reservation.  The seat row
// is locked, checked and updated with a status guard.
func (s *SeatInventory) ClaimSpecificTx(ctx context.Context, tx repository.Tx, flightID uint64, seatNumber string, reservationID uint64) (*model.Seat, error) {
	seat, err := tx.Seats().GetByNumberForUpdate(ctx, flightID, seatNumber)
	if err != nil {
		return nil, translate(err)
	}
	if seat.Status != model.SeatAvailable {
		return nil, ErrSeatUnavailable
	}
	if err := s.book(ctx, tx, seat, reservationID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSeatUnavailable
		}
		return nil, err
	}
	return seat, nil
}

// ClaimAutoTx picks and books a seat.  Candidates come from the preferred
// class, or from every class when that class has nothing left, ranked
// window, then aisle, then the rest.  Each candidate is locked and
// re-checked; a candidate taken in the meantime is skipped, up to the
// configured number of attempts.
func (s *SeatInventory) ClaimAutoTx(ctx context.Context, tx repository.Tx, flightID, reservationID uint64, preferred model.SeatClass) (*model.Seat, error) {
	candidates, err := tx.Seats().ListAvailable(ctx, flightID, preferred)
	if err != nil {
		return nil, translate(err)
	}
	if len(candidates) == 0 && preferred != "" {
		if candidates, err = tx.Seats().ListAvailable(ctx, flightID, ""); err != nil {
			return nil, translate(err)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoSeatsAvailable
	}
	ranked := RankCandidates(candidates)
	if len(ranked) > s.attempts {
		ranked = ranked[:s.attempts]
	}
	for _, c := range ranked {
		seat, err := tx.Seats().GetByIDForUpdate(ctx, c.ID)
		if err != nil {
			if errors.Is(err, repository.ErrSeatNotFound) {
				continue
			}
			return nil, translate(err)
		}
		if seat.Status != model.SeatAvailable {
			continue
		}
		if err := s.book(ctx, tx, seat, reservationID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return nil, err
		}
		return seat, nil
	}
	return nil, ErrNoSeatsAvailable
}

func (s *SeatInventory) book(ctx context.Context, tx repository.Tx, seat *model.Seat, reservationID uint64) error {
	if err := tx.Seats().UpdateStatus(ctx, seat.ID, model.SeatAvailable, model.SeatBooked, &reservationID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return err
		}
		return translate(err)
	}
	seat.Status = model.SeatBooked
	seat.ReservationID = &reservationID
	return nil
}

// RankCandidates orders available seats for automatic selection: window
// seats first, then aisle seats, then the remainder, each group keeping
// its (class, seat number) order.
func RankCandidates(seats []model.Seat) []model.Seat {
	sorted := append([]model.Seat(nil), seats...)
	model.SortSeats(sorted)
	out := make([]model.Seat, 0, len(sorted))
	for _, pos := range []model.SeatPosition{model.PositionWindow, model.PositionAisle} {
		for _, seat := range sorted {
			if seat.Position() == pos {
				out = append(out, seat)
			}
		}
	}
	for _, seat := range sorted {
		if p := seat.Position(); p != model.PositionWindow && p != model.PositionAisle {
			out = append(out, seat)
		}
	}
	return out
}

// ReleaseTx returns a reservation's seats to AVAILABLE, keeping the ids
// listed in keep.
func (s *SeatInventory) ReleaseTx(ctx context.Context, tx repository.Tx, reservationID uint64, keep ...uint64) (int, error) {
	n, err := tx.Seats().ReleaseByReservation(ctx, reservationID, keep...)
	return n, translate(err)
}

// Block takes an AVAILABLE seat out of sale.
func (s *SeatInventory) Block(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error) {
	return s.transition(ctx, flightID, seatNumber, model.SeatAvailable, model.SeatBlocked)
}

// Unblock returns a BLOCKED seat to sale.
func (s *SeatInventory) Unblock(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error) {
	return s.transition(ctx, flightID, seatNumber, model.SeatBlocked, model.SeatAvailable)
}

func (s *SeatInventory) transition(ctx context.Context, flightID uint64, seatNumber string, from, to model.SeatStatus) (*model.Seat, error) {
	var seat *model.Seat
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Flights().GetByIDForUpdate(ctx, flightID); err != nil {
			return translate(err)
		}
		current, err := tx.Seats().GetByNumberForUpdate(ctx, flightID, seatNumber)
		if err != nil {
			return translate(err)
		}
		if current.Status != from {
			return ErrInvalidState
		}
		if err := tx.Seats().UpdateStatus(ctx, current.ID, from, to, nil); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrInvalidState
			}
			return translate(err)
		}
		current.Status = to
		if _, err := s.counter.SyncTx(ctx, tx, flightID); err != nil {
			return err
		}
		seat = current
		return nil
	})
	if err != nil {
		return nil, asSystem(err)
	}
	s.log.WithFields(logrus.Fields{
		"flight_id":   flightID,
		"seat_number": seatNumber,
		"from":        from,
		"to":          to,
	}).Info("seat status changed")
	return seat, nil
}
