package venue

import (
	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

// Layout describes a rectangular venue. CenterRowSeats is the width of the
// block in the middle of every row that counts as "center row".
type Layout struct {
	Rows           int
	SeatsPerRow    int
	CenterRowSeats int
}

func (l Layout) Validate() error {
	if l.Rows < 1 || l.SeatsPerRow < 1 {
		return errors.Wrap(domain.ErrInvalidLayout, "unable to create a venue without seats or rows")
	}
	if l.CenterRowSeats < 1 {
		return errors.Wrapf(domain.ErrInvalidLayout, "center row seat count must be >= 1, got %d", l.CenterRowSeats)
	}
	if l.CenterRowSeats > l.SeatsPerRow {
		return errors.Wrapf(domain.ErrInvalidLayout, "center row seat count exceeds row size (%d > %d)", l.CenterRowSeats, l.SeatsPerRow)
	}
	return nil
}

// CenterSeat returns the single center seat of a row with n seats.
func CenterSeat(n int) int {
	return (n + 1) / 2
}

// CenterBlock returns the first and last seat numbers of the k-wide center
// block of a row with n seats.
func CenterBlock(n, k int) (first, last int) {
	first = (n-k)/2 + 1
	return first, first + k - 1
}

func newRow(size, centerRowSeats int) []seat {
	center := CenterSeat(size)
	first, last := CenterBlock(size, centerRowSeats)

	seats := make([]seat, size)
	for i := range seats {
		n := i + 1
		seats[i] = seat{
			aisle:      n == 1 || n == size,
			centerSeat: n == center,
			centerRow:  n >= first && n <= last,
		}
	}
	return seats
}
