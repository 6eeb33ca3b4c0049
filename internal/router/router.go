// Package router registers the HTTP routes of the booking service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Flights      *handler.FlightHandler
	Reservations *handler.ReservationHandler
	Seats        *handler.SeatHandler
	Payments     *handler.PaymentHandler
}

// Middleware bundles the cross-cutting middleware chosen at startup.
type Middleware struct {
	JWTSecret  string
	RateLimit  echo.MiddlewareFunc
	// Cache serves catalogue listings; Invalidate retires them after any
	// write that can change a flight's available seats.
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func (m Middleware) admin() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(m.JWTSecret), middleware.RequireRole(middleware.RoleAdmin)}
}

// adminWrite guards an admin route that changes seat availability.
func (m Middleware) adminWrite() []echo.MiddlewareFunc {
	return append(m.admin(), m.Invalidate)
}

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, store repository.Store) {
	e.GET("/healthz", handler.Health(store))
}

// RegisterAPI registers every /api route.
func RegisterAPI(e *echo.Echo, h Handlers, m Middleware) {
	if m.RateLimit == nil {
		m.RateLimit = passThrough
	}
	if m.Cache == nil {
		m.Cache = passThrough
	}
	if m.Invalidate == nil {
		m.Invalidate = passThrough
	}
	api := e.Group("/api")
	registerFlights(api, h.Flights, m)
	registerReservations(api, h.Reservations, m)
	registerSeats(api, h.Seats, m)
	registerPayments(api, h.Payments, m)
}

func registerFlights(api *echo.Group, h *handler.FlightHandler, m Middleware) {
	g := api.Group("/flights")
	g.GET("", h.List, m.Cache)
	g.GET("/search", h.Search, m.Cache)
	g.GET("/origins", h.Origins, m.Cache)
	g.GET("/destinations", h.Destinations, m.Cache)
	g.GET("/:id", h.Get)
	g.POST("", h.Create, m.adminWrite()...)
	g.POST("/:id/sync", h.Sync, m.adminWrite()...)
}

func registerReservations(api *echo.Group, h *handler.ReservationHandler, m Middleware) {
	g := api.Group("/reservations")
	// Bookings accept an optional token so created_by can be recorded.
	booking := []echo.MiddlewareFunc{middleware.OptionalJWT(m.JWTSecret), m.RateLimit, m.Invalidate}
	g.POST("/flight/:flightId/with-payment", h.CreateWithPayment, booking...)
	g.POST("/flight/:flightId/with-payment/seat/:seatNumber", h.CreateWithSpecificSeat, booking...)
	g.POST("/flight/:flightId", h.CreateWithoutPayment, m.adminWrite()...)
	g.DELETE("/cancel/:bookingReference", h.Cancel, m.Invalidate)
	g.POST("/change-seat/:bookingReference/:newSeatNumber", h.ChangeSeat, m.Invalidate)

	g.GET("", h.ListAll, m.admin()...)
	g.GET("/reference/:ref", h.ByReference)
	g.GET("/reference/:ref/boarding-pass.png", h.BoardingPass)
	g.GET("/email/:email", h.ByEmail)
	g.GET("/flight/:flightId/available-seats", h.AvailableSeats)
	g.GET("/flight/:flightId/seat-map", h.SeatMap)
}

func registerSeats(api *echo.Group, h *handler.SeatHandler, m Middleware) {
	g := api.Group("/seats")
	g.GET("/flight/:flightId", h.List)
	g.GET("/flight/:flightId/statistics", h.Statistics)
	g.POST("/flight/:flightId/:seatNumber/block", h.Block, m.adminWrite()...)
	g.POST("/flight/:flightId/:seatNumber/unblock", h.Unblock, m.adminWrite()...)
}

func registerPayments(api *echo.Group, h *handler.PaymentHandler, m Middleware) {
	g := api.Group("/payments")
	g.POST("/process", h.Process, m.RateLimit)
	g.GET("/transaction/:transactionId", h.ByTransaction)
	g.GET("/reservation/:reservationId", h.ByReservation)

	api.GET("/admin/payments/unreconciled", h.Unreconciled, m.admin()...)
}
