package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can
// run either standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is the common part of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type repos struct {
	flights      *FlightRepo
	seats        *SeatRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
}

func bind(db DBTX) repos {
	return repos{
		flights:      NewFlightRepo(db),
		seats:        NewSeatRepo(db),
		reservations: NewReservationRepo(db),
		payments:     NewPaymentRepo(db),
	}
}

func (r repos) Flights() FlightRepository           { return r.flights }
func (r repos) Seats() SeatRepository               { return r.seats }
func (r repos) Reservations() ReservationRepository { return r.reservations }
func (r repos) Payments() PaymentRepository         { return r.payments }

// MySQLStore implements Store on top of a MySQL connection pool.
// Transactions run at READ COMMITTED: correctness of seat claims relies on
// row locks taken with SELECT ... FOR UPDATE, not on snapshot isolation,
// and every statement must observe rows committed by competing claims.
type MySQLStore struct {
	repos
	db        *sql.DB
	txTimeout time.Duration
}

// NewMySQLStore wraps db.  txTimeout bounds each WithinTx call; zero
// disables the bound.
func NewMySQLStore(db *sql.DB, txTimeout time.Duration) *MySQLStore {
	return &MySQLStore{repos: bind(db), db: db, txTimeout: txTimeout}
}

// DB exposes the underlying pool for tooling such as migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Ping verifies that the database is reachable.
func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithinTx runs fn inside a database transaction.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
