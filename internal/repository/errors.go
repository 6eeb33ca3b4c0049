// Package repository defines the persistence contracts of the booking core
// and their MySQL implementation.  The sentinel values below let the
// service layer distinguish failure scenarios without knowing which
// store produced them.  ErrConflict signals that a compare-and-set
// update lost against a concurrent writer, while ErrLockTimeout means a
// row lock could not be acquired in time and the operation may be
// retried.
package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrFlightNotFound      = errors.New("flight not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotFound     = errors.New("payment not found")
)

// ErrConflict is returned when an update guarded by an expected current
// state affects no rows because the state has already changed.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint, e.g. a second seat with the same (flight, seat number).
var ErrDuplicate = errors.New("duplicate key")

// ErrLockTimeout is returned when a row lock could not be obtained
// before the lock wait timeout, or the transaction was chosen as a
// deadlock victim.
var ErrLockTimeout = errors.New("lock wait timeout")

// MySQL server error numbers this package reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify maps driver errors onto the package sentinels.  Errors it
// does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return errors.Join(ErrDuplicate, err)
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return errors.Join(ErrLockTimeout, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrLockTimeout, err)
	}
	return err
}
