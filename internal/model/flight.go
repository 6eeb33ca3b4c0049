package model

import "time"

// Flight is a scheduled flight.  AvailableSeats mirrors the number of
// AVAILABLE seats and is recomputed whenever seat state changes; the
// seats table remains the authority.
//
// Fields:
//
//	ID             – primary key identifier.
//	FlightNumber   – unique carrier flight number, e.g. FL100.
//	Origin         – departure airport.
//	Destination    – arrival airport.
//	DepartureTime  – scheduled departure (UTC).
//	ArrivalTime    – scheduled arrival (UTC).
//	Price          – fare charged per reservation.
//	TotalSeats     – cabin capacity.
//	AvailableSeats – derived count of AVAILABLE seats.
type Flight struct {
	ID             uint64    `json:"id"`              // flights.id
	FlightNumber   string    `json:"flight_number"`   // flights.flight_number
	Origin         string    `json:"origin"`          // flights.origin
	Destination    string    `json:"destination"`     // flights.destination
	DepartureTime  time.Time `json:"departure_time"`  // flights.departure_time
	ArrivalTime    time.Time `json:"arrival_time"`    // flights.arrival_time
	Price          Money     `json:"price"`           // flights.price
	TotalSeats     int       `json:"total_seats"`     // flights.total_seats
	AvailableSeats int       `json:"available_seats"` // flights.available_seats
	CreatedAt      time.Time `json:"created_at"`      // flights.created_at
	UpdatedAt      time.Time `json:"updated_at"`      // flights.updated_at
}
