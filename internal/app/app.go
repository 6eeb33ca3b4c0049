// Package app assembles stores and services from configuration.  Both the
// HTTP server and the operator CLI start from here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/database"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
	"github.com/iliyamo/flight-seat-reservation/internal/repository/memory"
	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// OpenStore returns the configured store and a function that releases it.
func OpenStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (repository.Store, func(), error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.New(memory.WithLockWait(time.Duration(cfg.DBLockWaitSeconds) * time.Second)), func() {}, nil
	}
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("database schema migrated")
	}
	return repository.NewMySQLStore(db, cfg.TxTimeout), func() { _ = db.Close() }, nil
}

// OpenDB connects to the configured MySQL database.
func OpenDB(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		LockWaitSeconds: cfg.DBLockWaitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Services is the booking core wired onto one store.
type Services struct {
	Store       repository.Store
	Counter     *service.FlightCounter
	Inventory   *service.SeatInventory
	Payments    *service.PaymentProcessor
	Flights     *service.FlightService
	Coordinator *service.ReservationCoordinator
}

// NewServices wires the services.  notifier may be nil.
func NewServices(store repository.Store, cfg config.Config, notifier service.Notifier, log logrus.FieldLogger) *Services {
	counter := service.NewFlightCounter(store, log.WithField("component", "counter"))
	inventory := service.NewSeatInventory(store, counter, cfg.SeatClaimAttempts, log.WithField("component", "inventory"))
	payments := service.NewPaymentProcessor(store, log.WithField("component", "payments"))
	return &Services{
		Store:       store,
		Counter:     counter,
		Inventory:   inventory,
		Payments:    payments,
		Flights:     service.NewFlightService(store, inventory, log.WithField("component", "flights")),
		Coordinator: service.NewReservationCoordinator(store, inventory, counter, payments, notifier, log.WithField("component", "reservations")),
	}
}

// Notifier returns the RabbitMQ publisher when notifications are enabled.
func Notifier(cfg config.Config, log logrus.FieldLogger) service.Notifier {
	if !cfg.NotifyEnabled {
		return nil
	}
	return queue.NewPublisher(cfg.AMQPURL, log.WithField("component", "publisher"))
}
