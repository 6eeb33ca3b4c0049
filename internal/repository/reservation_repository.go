package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

const reservationColumns = `id, booking_reference, passenger_name, passenger_email, passenger_phone, flight_id,
	booking_date, total_amount, preferred_seat_class, status, created_by, created_at, updated_at`

// ReservationRepo provides access to the reservations table.  Seats are
// owned through seats.reservation_id and are loaded by SeatRepo.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db DBTX
}

// NewReservationRepo returns a new ReservationRepo bound to the given handle.
func NewReservationRepo(db DBTX) *ReservationRepo { return &ReservationRepo{db: db} }

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		createdBy sql.NullString
	)
	if err := s.Scan(
		&res.ID, &res.BookingReference, &res.PassengerName, &res.PassengerEmail, &res.PassengerPhone,
		&res.FlightID, &res.BookingDate, &res.TotalAmount, &res.PreferredSeatClass, &res.Status,
		&createdBy, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		v := createdBy.String
		res.CreatedBy = &v
	}
	return &res, nil
}

// Create inserts a new reservation and populates the generated ID and
// timestamps by reading the row back.  Status should be a valid
// enumeration ('PENDING','CONFIRMED','CANCELLED').
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (booking_reference, passenger_name, passenger_email, passenger_phone,
	               flight_id, booking_date, total_amount, preferred_seat_class, status, created_by)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var createdBy any
	if res.CreatedBy != nil {
		createdBy = *res.CreatedBy
	}
	result, err := r.db.ExecContext(ctx, q, res.BookingReference, res.PassengerName, res.PassengerEmail,
		res.PassengerPhone, res.FlightID, res.BookingDate.UTC(), res.TotalAmount, res.PreferredSeatClass,
		res.Status, createdBy)
	if err != nil {
		return classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*res = *stored
	return nil
}

// GetByID returns ErrReservationNotFound when no row matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
}

// GetByIDForUpdate reads and locks a reservation row.
func (r *ReservationRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
}

// GetByReference looks a reservation up by booking reference.
func (r *ReservationRepo) GetByReference(ctx context.Context, ref string) (*model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE booking_reference = ?`, ref)
}

// GetByReferenceForUpdate looks a reservation up by booking reference and
// locks the row.
func (r *ReservationRepo) GetByReferenceForUpdate(ctx context.Context, ref string) (*model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE booking_reference = ? FOR UPDATE`, ref)
}

func (r *ReservationRepo) get(ctx context.Context, q string, arg any) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, classify(err)
	}
	return res, nil
}

// ListByEmail returns a passenger's reservations, newest first.
func (r *ReservationRepo) ListByEmail(ctx context.Context, email string) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE passenger_email = ?
	                    ORDER BY booking_date DESC, id DESC`, email)
}

// ListAll returns every reservation in creation order.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// UpdateStatus moves a reservation from one status to another.  It
// returns ErrConflict if the stored status is no longer from.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}
