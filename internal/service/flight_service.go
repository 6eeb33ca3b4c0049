package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// FlightInput is the data needed to schedule a flight.
type FlightInput struct {
	FlightNumber  string
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Price         model.Money
	TotalSeats    int
}

func (in *FlightInput) normalize() error {
	in.FlightNumber = strings.ToUpper(strings.TrimSpace(in.FlightNumber))
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	switch {
	case in.FlightNumber == "":
		return invalid("flight number is required")
	case in.Origin == "" || in.Destination == "":
		return invalid("origin and destination are required")
	case strings.EqualFold(in.Origin, in.Destination):
		return invalid("origin and destination must differ")
	case in.DepartureTime.IsZero() || in.ArrivalTime.IsZero():
		return invalid("departure and arrival times are required")
	case !in.ArrivalTime.After(in.DepartureTime):
		return invalid("arrival must be after departure")
	case in.Price <= 0:
		return invalid("price must be positive")
	case in.TotalSeats < 1:
		return invalid("total seats must be at least 1")
	}
	return nil
}

// FlightService schedules and looks up flights.
type FlightService struct {
	store     repository.Store
	inventory *SeatInventory
	log       logrus.FieldLogger
}

func NewFlightService(store repository.Store, inventory *SeatInventory, log logrus.FieldLogger) *FlightService {
	return &FlightService{store: store, inventory: inventory, log: log}
}

// Create stores a flight and lays out its seats in the same transaction.
func (s *FlightService) Create(ctx context.Context, in FlightInput) (*model.Flight, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	f := &model.Flight{
		FlightNumber:   in.FlightNumber,
		Origin:         in.Origin,
		Destination:    in.Destination,
		DepartureTime:  in.DepartureTime.UTC(),
		ArrivalTime:    in.ArrivalTime.UTC(),
		Price:          in.Price,
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
	}
	var created *model.Flight
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Flights().Create(ctx, f); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errors.Join(ErrConflict, errors.New("flight number "+f.FlightNumber+" already exists"))
			}
			return translate(err)
		}
		if _, err := s.inventory.InitializeTx(ctx, tx, f); err != nil {
			return err
		}
		var err error
		created, err = tx.Flights().GetByID(ctx, f.ID)
		return translate(err)
	})
	if err != nil {
		return nil, asSystem(err)
	}
	s.log.WithFields(logrus.Fields{
		"flight_id":     created.ID,
		"flight_number": created.FlightNumber,
		"seats":         created.TotalSeats,
	}).Info("flight created")
	return created, nil
}

// Get returns one flight.
func (s *FlightService) Get(ctx context.Context, id uint64) (*model.Flight, error) {
	f, err := s.store.Flights().GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return f, nil
}

func (s *FlightService) List(ctx context.Context) ([]model.Flight, error) {
	list, err := s.store.Flights().List(ctx)
	return list, translate(err)
}

// Search filters flights by route and, when day is non-zero, by the
// calendar day of departure.
func (s *FlightService) Search(ctx context.Context, origin, destination string, day time.Time) ([]model.Flight, error) {
	list, err := s.store.Flights().Search(ctx, strings.TrimSpace(origin), strings.TrimSpace(destination), day)
	return list, translate(err)
}

func (s *FlightService) Origins(ctx context.Context) ([]string, error) {
	list, err := s.store.Flights().Origins(ctx)
	return list, translate(err)
}

func (s *FlightService) Destinations(ctx context.Context) ([]string, error) {
	list, err := s.store.Flights().Destinations(ctx)
	return list, translate(err)
}
