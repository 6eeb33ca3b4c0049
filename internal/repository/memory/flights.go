package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

type flights struct{ handle }

func (r flights) Create(ctx context.Context, f *model.Flight) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.flights {
		if existing.FlightNumber == f.FlightNumber {
			return repository.ErrDuplicate
		}
	}
	st.lastFlight++
	now := r.now().UTC()
	f.ID = st.lastFlight
	f.DepartureTime = f.DepartureTime.UTC()
	f.ArrivalTime = f.ArrivalTime.UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	st.flights[f.ID] = *f
	return nil
}

func (r flights) GetByID(ctx context.Context, id uint64) (*model.Flight, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	f, ok := st.flights[id]
	if !ok {
		return nil, repository.ErrFlightNotFound
	}
	return &f, nil
}

func (r flights) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Flight, error) {
	return r.GetByID(ctx, id)
}

func (r flights) List(ctx context.Context) ([]model.Flight, error) {
	return r.filter(ctx, func(model.Flight) bool { return true })
}

func (r flights) Search(ctx context.Context, origin, destination string, day time.Time) ([]model.Flight, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	var start, end time.Time
	if !day.IsZero() {
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
	}
	return r.filter(ctx, func(f model.Flight) bool {
		if origin != "" && !strings.EqualFold(f.Origin, origin) {
			return false
		}
		if destination != "" && !strings.EqualFold(f.Destination, destination) {
			return false
		}
		if !start.IsZero() && (f.DepartureTime.Before(start) || !f.DepartureTime.Before(end)) {
			return false
		}
		return true
	})
}

func (r flights) filter(ctx context.Context, keep func(model.Flight) bool) ([]model.Flight, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	out := []model.Flight{}
	for _, f := range st.flights {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].DepartureTime.Before(out[j].DepartureTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r flights) Origins(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, func(f model.Flight) string { return f.Origin })
}

func (r flights) Destinations(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, func(f model.Flight) string { return f.Destination })
}

func (r flights) distinct(ctx context.Context, field func(model.Flight) string) ([]string, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, f := range all {
		v := field(f)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r flights) SetAvailableSeats(ctx context.Context, id uint64, n int) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	f, ok := st.flights[id]
	if !ok {
		return nil
	}
	f.AvailableSeats = n
	f.UpdatedAt = r.now().UTC()
	st.flights[id] = f
	return nil
}
