package domain

import (
	"fmt"
	"time"
)

type SeatState int

const (
	SeatOpen SeatState = iota
	SeatHeld
	SeatReserved
)

func (s SeatState) String() string {
	switch s {
	case SeatOpen:
		return "OPEN"
	case SeatHeld:
		return "HELD"
	case SeatReserved:
		return "RESERVED"
	default:
		return fmt.Sprintf("SeatState(%d)", int(s))
	}
}

// SeatID is the immutable coordinate of a seat. Rows and seats are 1-indexed.
type SeatID struct {
	Row  int `json:"row" bson:"row"`
	Seat int `json:"seat" bson:"seat"`
}

func (id SeatID) String() string {
	return fmt.Sprintf("R%dS%d", id.Row, id.Seat)
}

// Seat is a point-in-time snapshot of a seat in the grid.
type Seat struct {
	SeatID
	State      SeatState
	Holder     string
	Aisle      bool
	CenterRow  bool
	CenterSeat bool
}

type SeatCounts struct {
	Open     int `json:"open"`
	Held     int `json:"held"`
	Reserved int `json:"reserved"`
	Total    int `json:"total"`
}

type HoldStatus string

const (
	HoldSuccess                  HoldStatus = "SUCCESS"
	HoldFailureInvalidParameters HoldStatus = "FAILURE_INVALID_PARAMETERS"
	HoldFailureInsufficientSeats HoldStatus = "FAILURE_INSUFFICIENT_SEATS"
)

// Hold is one request to temporarily claim seats. Only holds with
// HoldSuccess status are ever registered; failed ones are response values.
type Hold struct {
	ID             int64
	Customer       string
	RequestedCount int
	Seats          []SeatID
	Status         HoldStatus
	StatusDetail   string
	CreatedAt      time.Time
}

func (h Hold) GrantedCount() int {
	return len(h.Seats)
}

// Event is a hold lifecycle notification handed to the outbox.
type Event struct {
	Type       string    `json:"type"`
	HoldID     int64     `json:"hold_id"`
	Customer   string    `json:"customer,omitempty"`
	Seats      []SeatID  `json:"seats,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventHoldCreated  = "hold.created"
	EventHoldReserved = "hold.reserved"
	EventHoldExpired  = "hold.expired"
	EventSeatAnomaly  = "seat.anomaly"
)
