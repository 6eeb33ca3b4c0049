package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

type reservations struct{ handle }

func (r reservations) Create(ctx context.Context, res *model.Reservation) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.flights[res.FlightID]; !ok {
		return fmt.Errorf("memory: reservation references unknown flight %d", res.FlightID)
	}
	for _, existing := range st.reservations {
		if existing.BookingReference == res.BookingReference {
			return repository.ErrDuplicate
		}
	}
	st.lastReservation++
	now := r.now().UTC()
	stored := *res
	stored.ID = st.lastReservation
	stored.BookingDate = stored.BookingDate.UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	stored.Seats, stored.SeatNumbers = nil, nil
	st.reservations[stored.ID] = stored
	*res = stored
	return nil
}

func (r reservations) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	res, ok := st.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &res, nil
}

func (r reservations) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r reservations) GetByReference(ctx context.Context, ref string) (*model.Reservation, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, res := range st.reservations {
		if res.BookingReference == ref {
			return &res, nil
		}
	}
	return nil, repository.ErrReservationNotFound
}

func (r reservations) GetByReferenceForUpdate(ctx context.Context, ref string) (*model.Reservation, error) {
	return r.GetByReference(ctx, ref)
}

func (r reservations) ListByEmail(ctx context.Context, email string) ([]model.Reservation, error) {
	out, err := r.filter(ctx, func(res model.Reservation) bool { return res.PassengerEmail == email })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r reservations) ListAll(ctx context.Context) ([]model.Reservation, error) {
	return r.filter(ctx, func(model.Reservation) bool { return true })
}

func (r reservations) filter(ctx context.Context, keep func(model.Reservation) bool) ([]model.Reservation, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	out := []model.Reservation{}
	for _, res := range st.reservations {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r reservations) UpdateStatus(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	res, ok := st.reservations[id]
	if !ok || res.Status != from {
		return repository.ErrConflict
	}
	res.Status = to
	res.UpdatedAt = r.now().UTC()
	st.reservations[id] = res
	return nil
}
