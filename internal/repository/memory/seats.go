package memory

import (
	"context"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

type seats struct{ handle }

type seatKey struct {
	flightID uint64
	number   string
}

// CreateBulk is all-or-nothing, like a single multi-row INSERT.
func (r seats) CreateBulk(ctx context.Context, in []model.Seat) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	taken := make(map[seatKey]bool, len(st.seats)+len(in))
	for _, s := range st.seats {
		taken[seatKey{s.FlightID, s.SeatNumber}] = true
	}
	for _, s := range in {
		k := seatKey{s.FlightID, s.SeatNumber}
		if taken[k] {
			return repository.ErrDuplicate
		}
		taken[k] = true
	}
	now := r.now().UTC()
	for _, s := range in {
		st.lastSeat++
		s.ID = st.lastSeat
		s.ReservationID = nil
		s.CreatedAt, s.UpdatedAt = now, now
		st.seats[s.ID] = s
	}
	return nil
}

func (r seats) filter(ctx context.Context, keep func(model.Seat) bool) ([]model.Seat, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	out := []model.Seat{}
	for _, s := range st.seats {
		if keep(s) {
			out = append(out, s)
		}
	}
	model.SortSeats(out)
	return out, nil
}

func (r seats) ListByFlight(ctx context.Context, flightID uint64) ([]model.Seat, error) {
	return r.filter(ctx, func(s model.Seat) bool { return s.FlightID == flightID })
}

func (r seats) ListAvailable(ctx context.Context, flightID uint64, class model.SeatClass) ([]model.Seat, error) {
	return r.filter(ctx, func(s model.Seat) bool {
		return s.FlightID == flightID && s.Status == model.SeatAvailable && (class == "" || s.Class == class)
	})
}

func (r seats) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Seat, error) {
	return r.filter(ctx, func(s model.Seat) bool {
		return s.ReservationID != nil && *s.ReservationID == reservationID
	})
}

func (r seats) ListByReservations(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Seat, error) {
	want := make(map[uint64]bool, len(reservationIDs))
	for _, id := range reservationIDs {
		want[id] = true
	}
	all, err := r.filter(ctx, func(s model.Seat) bool { return s.ReservationID != nil && want[*s.ReservationID] })
	if err != nil {
		return nil, err
	}
	out := make(map[uint64][]model.Seat, len(reservationIDs))
	for _, s := range all {
		out[*s.ReservationID] = append(out[*s.ReservationID], s)
	}
	return out, nil
}

func (r seats) GetByNumberForUpdate(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, s := range st.seats {
		if s.FlightID == flightID && s.SeatNumber == seatNumber {
			return &s, nil
		}
	}
	return nil, repository.ErrSeatNotFound
}

func (r seats) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	s, ok := st.seats[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	return &s, nil
}

func (r seats) UpdateStatus(ctx context.Context, id uint64, from, to model.SeatStatus, reservationID *uint64) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	s, ok := st.seats[id]
	if !ok || s.Status != from {
		return repository.ErrConflict
	}
	s.Status = to
	s.ReservationID = nil
	if reservationID != nil {
		owner := *reservationID
		s.ReservationID = &owner
	}
	s.UpdatedAt = r.now().UTC()
	st.seats[id] = s
	return nil
}

func (r seats) ReleaseByReservation(ctx context.Context, reservationID uint64, keep ...uint64) (int, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()
	skip := make(map[uint64]bool, len(keep))
	for _, id := range keep {
		skip[id] = true
	}
	n := 0
	now := r.now().UTC()
	for id, s := range st.seats {
		if s.ReservationID == nil || *s.ReservationID != reservationID || skip[id] {
			continue
		}
		s.Status = model.SeatAvailable
		s.ReservationID = nil
		s.UpdatedAt = now
		st.seats[id] = s
		n++
	}
	return n, nil
}

func (r seats) Counts(ctx context.Context, flightID uint64) (model.SeatCounts, error) {
	var c model.SeatCounts
	st, done, err := r.begin(ctx)
	if err != nil {
		return c, err
	}
	defer done()
	for _, s := range st.seats {
		if s.FlightID == flightID {
			c.Add(s.Status)
		}
	}
	return c, nil
}
