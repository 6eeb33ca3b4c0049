package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// CanTransition reports whether a reservation may move from s to next.
// PENDING may be confirmed or cancelled, CONFIRMED may only be cancelled,
// and CANCELLED is terminal.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	switch s {
	case ReservationPending:
		return next == ReservationConfirmed || next == ReservationCancelled
	case ReservationConfirmed:
		return next == ReservationCancelled
	}
	return false
}

// Reservation records one passenger's booking on a flight.  Seats are
// not stored on the reservation row; they are loaded by reservation id
// and attached with AttachSeats.
//
// Fields:
//
//	ID                 – primary key identifier.
//	BookingReference   – FL followed by 8 uppercase hex characters.
//	PassengerName      – passenger full name.
//	PassengerEmail     – contact email, used for lookups.
//	PassengerPhone     – contact phone.
//	FlightID           – flight being booked.
//	BookingDate        – when the reservation was created.
//	TotalAmount        – amount charged (flight price).
//	PreferredSeatClass – class used by automatic seat selection.
//	Status             – PENDING, CONFIRMED or CANCELLED.
//	CreatedBy          – authenticated subject that made the booking, if any.
type Reservation struct {
	ID                 uint64            `json:"id"`                   // reservations.id
	BookingReference   string            `json:"booking_reference"`    // reservations.booking_reference
	PassengerName      string            `json:"passenger_name"`       // reservations.passenger_name
	PassengerEmail     string            `json:"passenger_email"`      // reservations.passenger_email
	PassengerPhone     string            `json:"passenger_phone"`      // reservations.passenger_phone
	FlightID           uint64            `json:"flight_id"`            // reservations.flight_id
	BookingDate        time.Time         `json:"booking_date"`         // reservations.booking_date
	TotalAmount        Money             `json:"total_amount"`         // reservations.total_amount
	PreferredSeatClass SeatClass         `json:"preferred_seat_class"` // reservations.preferred_seat_class
	Status             ReservationStatus `json:"status"`               // reservations.status
	CreatedBy          *string           `json:"created_by,omitempty"` // reservations.created_by (nullable)
	CreatedAt          time.Time         `json:"created_at"`           // reservations.created_at
	UpdatedAt          time.Time         `json:"updated_at"`           // reservations.updated_at

	Seats       []Seat   `json:"seats"`
	SeatNumbers []string `json:"seat_numbers"`
}

// AttachSeats sets the reservation's seat list and the derived seat
// numbers.  A nil slice is normalised to empty so JSON renders [].
func (r *Reservation) AttachSeats(seats []Seat) {
	if seats == nil {
		seats = []Seat{}
	}
	SortSeats(seats)
	r.Seats = seats
	r.SeatNumbers = make([]string, 0, len(seats))
	for _, s := range seats {
		r.SeatNumbers = append(r.SeatNumbers, s.SeatNumber)
	}
}
