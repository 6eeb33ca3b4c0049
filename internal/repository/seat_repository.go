package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

const seatColumns = `id, flight_id, seat_number, seat_class, status, reservation_id, created_at, updated_at`

// seatInsertChunk caps the number of rows per multi-row INSERT.
const seatInsertChunk = 500

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db DBTX
}

// NewSeatRepo constructs a SeatRepo with the given handle.
func NewSeatRepo(db DBTX) *SeatRepo {
	return &SeatRepo{db: db}
}

func scanSeat(s rowScanner) (*model.Seat, error) {
	var (
		seat  model.Seat
		resID sql.NullInt64
	)
	if err := s.Scan(&seat.ID, &seat.FlightID, &seat.SeatNumber, &seat.Class, &seat.Status,
		&resID, &seat.CreatedAt, &seat.UpdatedAt); err != nil {
		return nil, err
	}
	if resID.Valid {
		id := uint64(resID.Int64)
		seat.ReservationID = &id
	}
	return &seat, nil
}

// CreateBulk inserts seats with multi-row statements.  A clash on the
// (flight_id, seat_number) key is reported as ErrDuplicate.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	for start := 0; start < len(seats); start += seatInsertChunk {
		end := min(start+seatInsertChunk, len(seats))
		query := `INSERT INTO seats (flight_id, seat_number, seat_class, status) VALUES `
		args := make([]any, 0, (end-start)*4)
		for i, seat := range seats[start:end] {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, seat.FlightID, seat.SeatNumber, seat.Class, seat.Status)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return classify(err)
		}
	}
	return nil
}

// ListByFlight returns every seat of a flight in (class, seat number) order.
func (r *SeatRepo) ListByFlight(ctx context.Context, flightID uint64) ([]model.Seat, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE flight_id = ?`, flightID)
}

// ListAvailable returns the AVAILABLE seats of a flight, optionally
// restricted to one class.
func (r *SeatRepo) ListAvailable(ctx context.Context, flightID uint64, class model.SeatClass) ([]model.Seat, error) {
	if class == "" {
		return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE flight_id = ? AND status = ?`,
			flightID, model.SeatAvailable)
	}
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE flight_id = ? AND status = ? AND seat_class = ?`,
		flightID, model.SeatAvailable, class)
}

// ListByReservation returns the seats owned by a reservation.
func (r *SeatRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Seat, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE reservation_id = ?`, reservationID)
}

// ListByReservations loads seats for many reservations in one query and
// groups them by reservation id.
func (r *SeatRepo) ListByReservations(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Seat, error) {
	out := make(map[uint64][]model.Seat, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(reservationIDs))
	for i, id := range reservationIDs {
		args[i] = id
	}
	seats, err := r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE reservation_id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, s := range seats {
		id := *s.ReservationID
		out[id] = append(out[id], s)
	}
	return out, nil
}

func (r *SeatRepo) list(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	result := []model.Seat{}
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	model.SortSeats(result)
	return result, nil
}

// GetByNumberForUpdate reads a seat by its number and locks the row.
func (r *SeatRepo) GetByNumberForUpdate(ctx context.Context, flightID uint64, seatNumber string) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE flight_id = ? AND seat_number = ? FOR UPDATE`
	return r.get(ctx, q, flightID, seatNumber)
}

// GetByIDForUpdate reads a seat by id and locks the row.
func (r *SeatRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ? FOR UPDATE`
	return r.get(ctx, q, id)
}

func (r *SeatRepo) get(ctx context.Context, q string, args ...any) (*model.Seat, error) {
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, classify(err)
	}
	return s, nil
}

// UpdateStatus is a compare-and-set guarded by the current status.
func (r *SeatRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.SeatStatus, reservationID *uint64) error {
	const q = `UPDATE seats SET status = ?, reservation_id = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = ?`
	var owner any
	if reservationID != nil {
		owner = *reservationID
	}
	res, err := r.db.ExecContext(ctx, q, to, owner, id, from)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ReleaseByReservation frees the seats owned by a reservation.
func (r *SeatRepo) ReleaseByReservation(ctx context.Context, reservationID uint64, keep ...uint64) (int, error) {
	q := `UPDATE seats SET status = ?, reservation_id = NULL, updated_at = CURRENT_TIMESTAMP
	      WHERE reservation_id = ?`
	args := []any{model.SeatAvailable, reservationID}
	if len(keep) > 0 {
		q += ` AND id NOT IN (` + placeholders(len(keep)) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Counts tallies the seats of a flight by status.
func (r *SeatRepo) Counts(ctx context.Context, flightID uint64) (model.SeatCounts, error) {
	const q = `SELECT status, COUNT(*) FROM seats WHERE flight_id = ? GROUP BY status`
	var c model.SeatCounts
	rows, err := r.db.QueryContext(ctx, q, flightID)
	if err != nil {
		return c, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status model.SeatStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return c, err
		}
		c.Total += n
		switch status {
		case model.SeatAvailable:
			c.Available = n
		case model.SeatBooked:
			c.Booked = n
		case model.SeatBlocked:
			c.Blocked = n
		}
	}
	return c, classify(rows.Err())
}
