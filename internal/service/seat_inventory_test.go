package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

func (e *env) pendingReservation(t *testing.T, flightID uint64) *model.Reservation {
	t.Helper()
	r := &model.Reservation{
		BookingReference:   NewBookingReference(),
		PassengerName:      "Grace Hopper",
		PassengerEmail:     "grace@example.com",
		PassengerPhone:     "555-0100",
		FlightID:           flightID,
		TotalAmount:        model.Cents(100),
		PreferredSeatClass: model.ClassEconomy,
		Status:             model.ReservationPending,
	}
	require.NoError(t, e.store.Reservations().Create(context.Background(), r))
	return r
}

func (e *env) claimAuto(t *testing.T, flightID, reservationID uint64, class model.SeatClass) (*model.Seat, error) {
	t.Helper()
	var seat *model.Seat
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		if seat, err = e.inventory.ClaimAutoTx(ctx, tx, flightID, reservationID, class); err != nil {
			return err
		}
		_, err = e.counter.SyncTx(ctx, tx, flightID)
		return err
	})
	return seat, err
}

func TestInitializeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.bareFlight(t, "FL200", 60)

	n, err := e.inventory.Initialize(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	n, err = e.inventory.Initialize(ctx, f.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	counts, err := e.inventory.Counts(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatCounts{Total: 60, Available: 60}, counts)
	checkInvariants(t, e.store)
}

func TestInitializeConcurrentCallersCreateOneLayout(t *testing.T) {
	e := newEnv(t)
	f := e.bareFlight(t, "FL201", 18)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := e.inventory.Initialize(context.Background(), f.ID)
			assert.NoError(t, err)
			mu.Lock()
			created += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 18, created)
	seats, err := e.inventory.ListAll(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 18)
	checkInvariants(t, e.store)
}

func TestInitializeUnknownFlight(t *testing.T) {
	e := newEnv(t)
	_, err := e.inventory.Initialize(context.Background(), 404)
	assert.ErrorIs(t, err, ErrFlightNotFound)
}

func TestListAvailableFiltersByClass(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL202", 60)

	business, err := e.inventory.ListAvailable(context.Background(), f.ID, model.ClassBusiness)
	require.NoError(t, err)
	require.Len(t, business, 12)
	assert.Equal(t, "3A", business[0].SeatNumber)
	assert.Equal(t, "4F", business[11].SeatNumber)

	all, err := e.inventory.ListAvailable(context.Background(), f.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 60)
	assert.Equal(t, model.ClassEconomy, all[0].Class)
	assert.Equal(t, "9A", all[0].SeatNumber)

	_, err = e.inventory.ListAvailable(context.Background(), f.ID, "COACH")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeatMapRows(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL203", 8)

	rows, err := e.inventory.SeatMap(context.Background(), f.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Seats, 6)
	assert.Len(t, rows[1].Seats, 2)
	assert.Equal(t, "2B", rows[1].Seats[1].SeatNumber)
}

func TestClaimSpecific(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL204", 12)
	r1 := e.pendingReservation(t, f.ID)
	r2 := e.pendingReservation(t, f.ID)

	claim := func(number string, resID uint64) error {
		return e.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			_, err := e.inventory.ClaimSpecificTx(ctx, tx, f.ID, number, resID)
			return err
		})
	}

	require.NoError(t, claim("2C", r1.ID))
	assert.ErrorIs(t, claim("2C", r2.ID), ErrSeatUnavailable)
	assert.ErrorIs(t, claim("9Z", r2.ID), ErrSeatNotFound)

	s := e.seat(t, f.ID, "2C")
	assert.Equal(t, model.SeatBooked, s.Status)
	require.NotNil(t, s.ReservationID)
	assert.Equal(t, r1.ID, *s.ReservationID)
}

func TestClaimAutoPrefersClassThenWindow(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL205", 60)
	r := e.pendingReservation(t, f.ID)

	var got []string
	for i := 0; i < 5; i++ {
		seat, err := e.claimAuto(t, f.ID, r.ID, model.ClassBusiness)
		require.NoError(t, err)
		got = append(got, seat.SeatNumber)
	}
	assert.Equal(t, []string{"3A", "3F", "4A", "4F", "3C"}, got)
	assert.Equal(t, 55, e.availableSeats(t, f.ID))
}

func TestClaimAutoFallsBackToAnyClass(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL206", 12)
	r := e.pendingReservation(t, f.ID)

	seat, err := e.claimAuto(t, f.ID, r.ID, model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, "1A", seat.SeatNumber)
	assert.Equal(t, model.ClassFirst, seat.Class)
}

func TestClaimAutoNoSeats(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL207", 1)
	r := e.pendingReservation(t, f.ID)

	_, err := e.claimAuto(t, f.ID, r.ID, model.ClassFirst)
	require.NoError(t, err)
	_, err = e.claimAuto(t, f.ID, r.ID, model.ClassFirst)
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)
}

// contendedSeats reports the first `taken` locked candidates as already
// BOOKED, as if concurrent bookings had won them.
type contendedSeats struct {
	repository.SeatRepository
	taken int
	seen  []string
}

func (c *contendedSeats) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Seat, error) {
	s, err := c.SeatRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.seen = append(c.seen, s.SeatNumber)
	if len(c.seen) <= c.taken {
		s.Status = model.SeatBooked
	}
	return s, nil
}

type contendedTx struct {
	repository.Tx
	seats *contendedSeats
}

func (t contendedTx) Seats() repository.SeatRepository { return t.seats }

func TestClaimAutoBoundedRetries(t *testing.T) {
	cases := []struct {
		taken   int
		want    string
		wantErr error
	}{
		{taken: 0, want: "3A"},
		{taken: 2, want: "4A"},
		{taken: 3, wantErr: ErrNoSeatsAvailable},
	}
	for _, tc := range cases {
		e := newEnv(t)
		f := e.flight(t, "FL208", 60)
		r := e.pendingReservation(t, f.ID)

		var seat *model.Seat
		var seats *contendedSeats
		err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			seats = &contendedSeats{SeatRepository: tx.Seats(), taken: tc.taken}
			var err error
			seat, err = e.inventory.ClaimAutoTx(ctx, contendedTx{Tx: tx, seats: seats}, f.ID, r.ID, model.ClassBusiness)
			return err
		})
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Len(t, seats.seen, DefaultClaimAttempts)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, seat.SeatNumber)
	}
}

func TestRankCandidates(t *testing.T) {
	seats := []model.Seat{
		{SeatNumber: "3B", Class: model.ClassEconomy},
		{SeatNumber: "3D", Class: model.ClassEconomy},
		{SeatNumber: "4F", Class: model.ClassEconomy},
		{SeatNumber: "3A", Class: model.ClassEconomy},
		{SeatNumber: "3C", Class: model.ClassEconomy},
	}
	var got []string
	for _, s := range RankCandidates(seats) {
		got = append(got, s.SeatNumber)
	}
	assert.Equal(t, []string{"3A", "4F", "3C", "3D", "3B"}, got)
	assert.Equal(t, "3B", seats[0].SeatNumber, "input left untouched")
}

func TestReleaseThenClaimKeepsCounts(t *testing.T) {
	e := newEnv(t)
	f := e.flight(t, "FL209", 12)
	r := e.pendingReservation(t, f.ID)
	_, err := e.claimAuto(t, f.ID, r.ID, model.ClassFirst)
	require.NoError(t, err)

	before, err := e.inventory.Counts(context.Background(), f.ID)
	require.NoError(t, err)

	err = e.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		n, err := e.inventory.ReleaseTx(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		_, err = e.inventory.ClaimAutoTx(ctx, tx, f.ID, r.ID, model.ClassFirst)
		return err
	})
	require.NoError(t, err)

	after, err := e.inventory.Counts(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBlockAndUnblock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.flight(t, "FL210", 12)

	seat, err := e.inventory.Block(ctx, f.ID, "2D")
	require.NoError(t, err)
	assert.Equal(t, model.SeatBlocked, seat.Status)
	assert.Equal(t, 11, e.availableSeats(t, f.ID))
	checkInvariants(t, e.store)

	_, err = e.inventory.Block(ctx, f.ID, "2D")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.inventory.Unblock(ctx, f.ID, "2D")
	require.NoError(t, err)
	assert.Equal(t, 12, e.availableSeats(t, f.ID))

	_, err = e.inventory.Unblock(ctx, f.ID, "2D")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.inventory.Block(ctx, f.ID, "7A")
	assert.ErrorIs(t, err, ErrSeatNotFound)
	checkInvariants(t, e.store)
}
