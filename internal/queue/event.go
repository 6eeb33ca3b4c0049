// Package queue defines booking events exchanged over the message broker,
// the post-commit publisher and the consumer that keeps the booking log.
package queue

import "github.com/iliyamo/flight-seat-reservation/internal/model"

// DefaultQueue is the durable queue booking events are routed to.
const DefaultQueue = "booking.events"

// Event types.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventSeatChanged      = "booking.seat_changed"
)

// BookingEvent is published after a booking transaction commits.  It
// carries enough information for downstream consumers to log, notify or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	Type             string      `json:"type"`
	ReservationID    uint64      `json:"reservation_id"`
	BookingReference string      `json:"booking_reference"`
	FlightID         uint64      `json:"flight_id"`
	FlightNumber     string      `json:"flight_number"`
	Origin           string      `json:"origin"`
	Destination      string      `json:"destination"`
	DepartureTime    string      `json:"departure_time"`
	PassengerName    string      `json:"passenger_name"`
	PassengerEmail   string      `json:"passenger_email"`
	SeatNumbers      []string    `json:"seats"`
	TotalAmount      model.Money `json:"total_amount"`
	Status           string      `json:"status"`
	OccurredAt       string      `json:"occurred_at"`
}
