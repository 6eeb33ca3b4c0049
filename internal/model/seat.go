package model

import (
	"sort"
	"strconv"
	"time"
)

// SeatClass is the cabin class a seat belongs to.
type SeatClass string

const (
	ClassEconomy        SeatClass = "ECONOMY"
	ClassPremiumEconomy SeatClass = "PREMIUM_ECONOMY"
	ClassBusiness       SeatClass = "BUSINESS"
	ClassFirst          SeatClass = "FIRST"
)

// SeatClasses lists the classes in their canonical order.  Seat listings
// are sorted by this order before the seat number.
var SeatClasses = []SeatClass{ClassEconomy, ClassPremiumEconomy, ClassBusiness, ClassFirst}

// Rank returns the position of the class in SeatClasses, or len(SeatClasses)
// for an unknown value.
func (c SeatClass) Rank() int {
	for i, v := range SeatClasses {
		if v == c {
			return i
		}
	}
	return len(SeatClasses)
}

// Valid reports whether c is one of the known classes.
func (c SeatClass) Valid() bool { return c.Rank() < len(SeatClasses) }

// SeatStatus is the authoritative state of a seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
	SeatBlocked   SeatStatus = "BLOCKED"
)

// SeatPosition is derived from the seat letter.
type SeatPosition string

const (
	PositionWindow SeatPosition = "WINDOW"
	PositionAisle  SeatPosition = "AISLE"
	PositionMiddle SeatPosition = "MIDDLE"
)

// SeatsPerRow is the fixed cabin width used when seats are generated.
const SeatsPerRow = 6

// Seat is a single seat on a flight.  A seat is owned by at most one
// reservation; ReservationID is only a lookup key back to it.
//
// Fields:
//
//	ID            – primary key identifier.
//	FlightID      – flight the seat belongs to.
//	SeatNumber    – row number followed by a letter, e.g. 12C.
//	Class         – cabin class assigned at initialization.
//	Status        – AVAILABLE, BOOKED or BLOCKED.
//	ReservationID – owning reservation while BOOKED, otherwise nil.
type Seat struct {
	ID            uint64     `json:"id"`                       // seats.id
	FlightID      uint64     `json:"flight_id"`                // seats.flight_id
	SeatNumber    string     `json:"seat_number"`              // seats.seat_number
	Class         SeatClass  `json:"seat_class"`               // seats.seat_class
	Status        SeatStatus `json:"status"`                   // seats.status
	ReservationID *uint64    `json:"reservation_id,omitempty"` // seats.reservation_id (nullable)
	CreatedAt     time.Time  `json:"created_at"`               // seats.created_at
	UpdatedAt     time.Time  `json:"updated_at"`               // seats.updated_at
}

// Position classifies the seat as window, aisle or middle.
func (s Seat) Position() SeatPosition { return PositionOf(s.SeatNumber) }

// PositionOf classifies a seat number by its trailing letter.  Letters
// outside A..F yield an empty position.
func PositionOf(seatNumber string) SeatPosition {
	if seatNumber == "" {
		return ""
	}
	switch seatNumber[len(seatNumber)-1] {
	case 'A', 'F':
		return PositionWindow
	case 'C', 'D':
		return PositionAisle
	case 'B', 'E':
		return PositionMiddle
	}
	return ""
}

// ParseSeatNumber splits a seat number such as "12C" into its row and
// letter.  ok is false when the row part is not a positive integer or
// the letter is missing.
func ParseSeatNumber(seatNumber string) (row int, letter byte, ok bool) {
	if len(seatNumber) < 2 {
		return 0, 0, false
	}
	letter = seatNumber[len(seatNumber)-1]
	if letter < 'A' || letter > 'Z' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(seatNumber[:len(seatNumber)-1])
	if err != nil || n < 1 {
		return 0, 0, false
	}
	return n, letter, true
}

// SeatNumberFor builds the seat number for a zero-based seat index in a
// six-across layout: 0 -> 1A, 5 -> 1F, 6 -> 2A.
func SeatNumberFor(index int) string {
	row := index/SeatsPerRow + 1
	return strconv.Itoa(row) + string(rune('A'+index%SeatsPerRow))
}

// TotalRows is the number of rows needed to seat totalSeats passengers.
func TotalRows(totalSeats int) int {
	return (totalSeats + SeatsPerRow - 1) / SeatsPerRow
}

// ClassForRow assigns a cabin class to a 1-based row:
//
//	rows 1-2                              FIRST
//	rows 3..max(4, ceil(0.15*totalRows))  BUSINESS
//	next rows up to max(8, ceil(0.30*R))  PREMIUM_ECONOMY
//	remaining rows                        ECONOMY
func ClassForRow(row, totalRows int) SeatClass {
	businessEnd := max(4, ceilPercent(totalRows, 15))
	premiumEnd := max(8, ceilPercent(totalRows, 30))
	switch {
	case row <= 2:
		return ClassFirst
	case row <= businessEnd:
		return ClassBusiness
	case row <= premiumEnd:
		return ClassPremiumEconomy
	default:
		return ClassEconomy
	}
}

func ceilPercent(n, pct int) int { return (n*pct + 99) / 100 }

// GenerateSeats lays out totalSeats AVAILABLE seats for a flight.
func GenerateSeats(flightID uint64, totalSeats int) []Seat {
	if totalSeats < 1 {
		return nil
	}
	rows := TotalRows(totalSeats)
	out := make([]Seat, 0, totalSeats)
	for i := 0; i < totalSeats; i++ {
		out = append(out, Seat{
			FlightID:   flightID,
			SeatNumber: SeatNumberFor(i),
			Class:      ClassForRow(i/SeatsPerRow+1, rows),
			Status:     SeatAvailable,
		})
	}
	return out
}

// SeatLess orders seats by class rank, then row number, then letter.
// Unparsable seat numbers sort after parsable ones, by raw string.
func SeatLess(a, b Seat) bool {
	if ra, rb := a.Class.Rank(), b.Class.Rank(); ra != rb {
		return ra < rb
	}
	return SeatNumberLess(a.SeatNumber, b.SeatNumber)
}

// SeatNumberLess compares seat numbers naturally, so 2A sorts before 10A.
func SeatNumberLess(a, b string) bool {
	rowA, letA, okA := ParseSeatNumber(a)
	rowB, letB, okB := ParseSeatNumber(b)
	switch {
	case okA && okB:
		if rowA != rowB {
			return rowA < rowB
		}
		return letA < letB
	case okA != okB:
		return okA
	}
	return a < b
}

// SortSeats sorts in place in (class, seat number) order.
func SortSeats(seats []Seat) {
	sort.SliceStable(seats, func(i, j int) bool { return SeatLess(seats[i], seats[j]) })
}

// SeatRow is one row of a seat map.
type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

// BuildSeatMap groups seats by row number, rows ascending and seats in
// letter order.  Seats whose number has no parsable row are left out.
func BuildSeatMap(seats []Seat) []SeatRow {
	byRow := make(map[int][]Seat)
	for _, s := range seats {
		row, _, ok := ParseSeatNumber(s.SeatNumber)
		if !ok {
			continue
		}
		byRow[row] = append(byRow[row], s)
	}
	rows := make([]int, 0, len(byRow))
	for r := range byRow {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	out := make([]SeatRow, 0, len(rows))
	for _, r := range rows {
		rs := byRow[r]
		sort.SliceStable(rs, func(i, j int) bool { return SeatNumberLess(rs[i].SeatNumber, rs[j].SeatNumber) })
		out = append(out, SeatRow{Row: r, Seats: rs})
	}
	return out
}

// SeatCounts summarises the seats of one flight.
type SeatCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Booked    int `json:"booked"`
	Blocked   int `json:"blocked"`
}

// Add tallies one seat status into the counts.
func (c *SeatCounts) Add(status SeatStatus) {
	c.Total++
	switch status {
	case SeatAvailable:
		c.Available++
	case SeatBooked:
		c.Booked++
	case SeatBlocked:
		c.Blocked++
	}
}
