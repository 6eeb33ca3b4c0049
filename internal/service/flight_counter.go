package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// FlightCounter keeps flights.available_seats equal to the number of
// AVAILABLE seats.  The counter is only ever recomputed, never adjusted
// by a delta, and the recomputation happens under the flight row lock so
// two committing bookings cannot both write a stale count.
type FlightCounter struct {
	store repository.Store
	log   logrus.FieldLogger
}

// NewFlightCounter builds a FlightCounter.
func NewFlightCounter(store repository.Store, log logrus.FieldLogger) *FlightCounter {
	return &FlightCounter{store: store, log: log}
}

// SyncTx recomputes the counter inside tx and returns the flight as
// stored afterwards.  Callers must have finished their seat updates.
// Writers lock the flight row before any seat or reservation row, so
// here the lock is normally already held.
func (c *FlightCounter) SyncTx(ctx context.Context, tx repository.Tx, flightID uint64) (*model.Flight, error) {
	f, err := tx.Flights().GetByIDForUpdate(ctx, flightID)
	if err != nil {
		return nil, translate(err)
	}
	counts, err := tx.Seats().Counts(ctx, flightID)
	if err != nil {
		return nil, translate(err)
	}
	if f.AvailableSeats != counts.Available {
		if err := tx.Flights().SetAvailableSeats(ctx, flightID, counts.Available); err != nil {
			return nil, translate(err)
		}
		f.AvailableSeats = counts.Available
	}
	return f, nil
}

// Synchronize recomputes one flight's counter in its own transaction and
// reports the value before and after.
func (c *FlightCounter) Synchronize(ctx context.Context, flightID uint64) (before, after int, err error) {
	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		f, err := tx.Flights().GetByID(ctx, flightID)
		if err != nil {
			return translate(err)
		}
		before = f.AvailableSeats
		synced, err := c.SyncTx(ctx, tx, flightID)
		if err != nil {
			return err
		}
		after = synced.AvailableSeats
		return nil
	})
	if err != nil {
		return 0, 0, asSystem(err)
	}
	if before != after {
		c.log.WithFields(logrus.Fields{
			"flight_id": flightID,
			"before":    before,
			"after":     after,
		}).Warn("available seat counter drifted; resynchronized")
	}
	return before, after, nil
}

// SynchronizeAll recomputes every flight and returns how many counters
// were corrected.
func (c *FlightCounter) SynchronizeAll(ctx context.Context) (int, error) {
	flights, err := c.store.Flights().List(ctx)
	if err != nil {
		return 0, asSystem(err)
	}
	fixed := 0
	for _, f := range flights {
		before, after, err := c.Synchronize(ctx, f.ID)
		if err != nil {
			return fixed, err
		}
		if before != after {
			fixed++
		}
	}
	c.log.WithFields(logrus.Fields{"flights": len(flights), "corrected": fixed}).Info("seat counters synchronized")
	return fixed, nil
}
