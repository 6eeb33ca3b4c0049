package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

const flightColumns = `id, flight_number, origin, destination, departure_time, arrival_time,
	price, total_seats, available_seats, created_at, updated_at`

// FlightRepo provides access to the flights table.
type FlightRepo struct {
	db DBTX
}

// NewFlightRepo constructs a FlightRepo with the given handle.
func NewFlightRepo(db DBTX) *FlightRepo { return &FlightRepo{db: db} }

func scanFlight(s rowScanner) (*model.Flight, error) {
	var f model.Flight
	if err := s.Scan(
		&f.ID, &f.FlightNumber, &f.Origin, &f.Destination, &f.DepartureTime, &f.ArrivalTime,
		&f.Price, &f.TotalSeats, &f.AvailableSeats, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a flight and reads back the stored row so timestamps
// and defaults are populated.
func (r *FlightRepo) Create(ctx context.Context, f *model.Flight) error {
	const q = `INSERT INTO flights (flight_number, origin, destination, departure_time, arrival_time, price, total_seats, available_seats)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, f.FlightNumber, f.Origin, f.Destination,
		f.DepartureTime.UTC(), f.ArrivalTime.UTC(), f.Price, f.TotalSeats, f.AvailableSeats)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*f = *stored
	return nil
}

// GetByID returns ErrFlightNotFound when no row matches.
func (r *FlightRepo) GetByID(ctx context.Context, id uint64) (*model.Flight, error) {
	return r.get(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ?`, id)
}

// GetByIDForUpdate locks the flight row until the transaction ends.
func (r *FlightRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Flight, error) {
	return r.get(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ? FOR UPDATE`, id)
}

func (r *FlightRepo) get(ctx context.Context, q string, id uint64) (*model.Flight, error) {
	f, err := scanFlight(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFlightNotFound
		}
		return nil, classify(err)
	}
	return f, nil
}

// List returns all flights ordered by departure.
func (r *FlightRepo) List(ctx context.Context) ([]model.Flight, error) {
	return r.list(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time, id`)
}

// Search filters flights by route and, when day is non-zero, by the UTC
// calendar day of departure.  Empty origin or destination is ignored.
func (r *FlightRepo) Search(ctx context.Context, origin, destination string, day time.Time) ([]model.Flight, error) {
	var (
		where []string
		args  []any
	)
	if origin = strings.TrimSpace(origin); origin != "" {
		where = append(where, "LOWER(origin) = LOWER(?)")
		args = append(args, origin)
	}
	if destination = strings.TrimSpace(destination); destination != "" {
		where = append(where, "LOWER(destination) = LOWER(?)")
		args = append(args, destination)
	}
	if !day.IsZero() {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "departure_time >= ? AND departure_time < ?")
		args = append(args, start, start.Add(24*time.Hour))
	}
	q := `SELECT ` + flightColumns + ` FROM flights`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY departure_time, id`
	return r.list(ctx, q, args...)
}

func (r *FlightRepo) list(ctx context.Context, q string, args ...any) ([]model.Flight, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.Flight{}
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Origins lists the distinct departure airports.
func (r *FlightRepo) Origins(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT origin FROM flights ORDER BY origin`)
}

// Destinations lists the distinct arrival airports.
func (r *FlightRepo) Destinations(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT destination FROM flights ORDER BY destination`)
}

func (r *FlightRepo) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetAvailableSeats overwrites the derived counter.
func (r *FlightRepo) SetAvailableSeats(ctx context.Context, id uint64, n int) error {
	const q = `UPDATE flights SET available_seats = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, n, id); err != nil {
		return classify(err)
	}
	return nil
}
