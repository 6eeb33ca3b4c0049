package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

const paymentColumns = `p.id, p.reservation_id, p.transaction_id, p.payment_method, p.amount, p.status,
	p.payment_date, p.processed_date, p.card_last_four, p.card_holder_name, p.gateway_response,
	p.failure_reason, p.original_transaction_id`

// PaymentRepo provides append-only access to the payments table.
type PaymentRepo struct {
	db DBTX
}

// NewPaymentRepo constructs a PaymentRepo with the given handle.
func NewPaymentRepo(db DBTX) *PaymentRepo { return &PaymentRepo{db: db} }

func scanPayment(s rowScanner) (*model.Payment, error) {
	var (
		p         model.Payment
		processed sql.NullTime
		reason    sql.NullString
		original  sql.NullString
	)
	if err := s.Scan(&p.ID, &p.ReservationID, &p.TransactionID, &p.Method, &p.Amount, &p.Status,
		&p.PaymentDate, &processed, &p.CardLastFour, &p.CardHolderName, &p.GatewayResponse,
		&reason, &original); err != nil {
		return nil, err
	}
	if processed.Valid {
		t := processed.Time
		p.ProcessedDate = &t
	}
	if reason.Valid {
		v := reason.String
		p.FailureReason = &v
	}
	if original.Valid {
		v := original.String
		p.OriginalTransactionID = &v
	}
	return &p, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Create inserts a payment and populates its generated id.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, transaction_id, payment_method, amount, status, payment_date,
	               processed_date, card_last_four, card_holder_name, gateway_response, failure_reason, original_transaction_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var processed any
	if p.ProcessedDate != nil {
		processed = p.ProcessedDate.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, p.ReservationID, p.TransactionID, p.Method, p.Amount, p.Status,
		p.PaymentDate.UTC(), processed, p.CardLastFour, p.CardHolderName, p.GatewayResponse,
		nullable(p.FailureReason), nullable(p.OriginalTransactionID))
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByTransactionID returns ErrPaymentNotFound when no row matches.
func (r *PaymentRepo) GetByTransactionID(ctx context.Context, txID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments p WHERE p.transaction_id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, txID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, classify(err)
	}
	return p, nil
}

// ListByReservation returns payments for a reservation, newest first.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments p WHERE p.reservation_id = ?
	           ORDER BY p.payment_date DESC, p.id DESC`
	return r.list(ctx, q, reservationID)
}

// HasSuccessful reports whether the reservation already has a SUCCESS payment.
func (r *PaymentRepo) HasSuccessful(ctx context.Context, reservationID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM payments WHERE reservation_id = ? AND status = ?)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, reservationID, model.PaymentSuccess).Scan(&ok); err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// ListUnreconciled returns SUCCESS payments attached to CANCELLED reservations.
func (r *PaymentRepo) ListUnreconciled(ctx context.Context) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments p
	           JOIN reservations r ON r.id = p.reservation_id
	           WHERE p.status = ? AND r.status = ?
	           ORDER BY p.id`
	return r.list(ctx, q, model.PaymentSuccess, model.ReservationCancelled)
}

func (r *PaymentRepo) list(ctx context.Context, q string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
