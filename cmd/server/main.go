package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/app"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/logging"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/router"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage unavailable")
	}
	defer closeStore()

	svc := app.NewServices(store, cfg, app.Notifier(cfg, log), log)
	if cfg.SyncOnStartup {
		if _, err := svc.Counter.SynchronizeAll(ctx); err != nil {
			log.WithError(err).Error("startup seat counter synchronization failed")
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; using in-process rate limiting and no response cache")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(log))
	e.Use(echomw.Recover())

	catalogue := middleware.NewCatalogueCache(config.LoadCacheConfig(), rdb)
	router.RegisterRoutes(e, store)
	router.RegisterAPI(e, router.Handlers{
		Flights:      handler.NewFlightHandler(svc.Flights, svc.Counter, log),
		Reservations: handler.NewReservationHandler(svc.Coordinator, svc.Inventory, log),
		Seats:        handler.NewSeatHandler(svc.Inventory, log),
		Payments:     handler.NewPaymentHandler(svc.Payments, log),
	}, router.Middleware{
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:      catalogue.Listings(),
		Invalidate: catalogue.InvalidateOnWrite(),
	})

	var wg sync.WaitGroup
	if cfg.NotifyEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir, log.WithField("component", "consumer"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "storage": cfg.StorageDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	wg.Wait()
}
