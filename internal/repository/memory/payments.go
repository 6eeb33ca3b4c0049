package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

type payments struct{ handle }

func (r payments) Create(ctx context.Context, p *model.Payment) error {
	st, done, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.reservations[p.ReservationID]; !ok {
		return fmt.Errorf("memory: payment references unknown reservation %d", p.ReservationID)
	}
	for _, existing := range st.payments {
		if existing.TransactionID == p.TransactionID {
			return repository.ErrDuplicate
		}
	}
	st.lastPayment++
	p.ID = st.lastPayment
	st.payments[p.ID] = *p
	return nil
}

func (r payments) GetByTransactionID(ctx context.Context, txID string) (*model.Payment, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, p := range st.payments {
		if p.TransactionID == txID {
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (r payments) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	out := []model.Payment{}
	for _, p := range st.payments {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.After(out[j].PaymentDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r payments) HasSuccessful(ctx context.Context, reservationID uint64) (bool, error) {
	list, err := r.ListByReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}
	for _, p := range list {
		if p.Status == model.PaymentSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (r payments) ListUnreconciled(ctx context.Context) ([]model.Payment, error) {
	st, done, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	out := []model.Payment{}
	for _, p := range st.payments {
		if p.Status != model.PaymentSuccess {
			continue
		}
		if res, ok := st.reservations[p.ReservationID]; ok && res.Status == model.ReservationCancelled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
