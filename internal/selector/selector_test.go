package selector_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/selector"
	"github.com/robertarktes/seat-reservations/internal/venue"
)

type staticSeats []domain.Seat

func (s staticSeats) OpenSeats() []domain.Seat { return s }

func seat(row, num int) domain.Seat {
	return domain.Seat{SeatID: domain.SeatID{Row: row, Seat: num}}
}

func TestComprehensive_Scores(t *testing.T) {
	cases := []struct {
		name string
		seat domain.Seat
		want int
	}{
		{"plain", seat(1, 4), 10},
		{"aisle", domain.Seat{SeatID: domain.SeatID{Row: 1, Seat: 1}, Aisle: true}, 11},
		{"center row", domain.Seat{SeatID: domain.SeatID{Row: 1, Seat: 3}, CenterRow: true}, 12},
		{"center seat", domain.Seat{SeatID: domain.SeatID{Row: 1, Seat: 3}, CenterSeat: true}, 13},
		{"second row", seat(2, 4), 20},
	}
	for _, c := range cases {
		if got := selector.Comprehensive(c.seat); got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, got)
		}
	}
}

func TestLocate_InvalidAndInsufficient(t *testing.T) {
	s := selector.New(staticSeats{seat(1, 1), seat(1, 2)}, selector.RowProximity)

	for _, n := range []int{0, -1} {
		if _, err := s.Locate(n); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Locate(%d): expected invalid request, got %v", n, err)
		}
	}
	if _, err := s.Locate(3); !errors.Is(err, domain.ErrInsufficientSeats) {
		t.Errorf("expected insufficient seats, got %v", err)
	}
}

func TestLocate_RowProximityKeepsIterationOrder(t *testing.T) {
	open := staticSeats{seat(2, 1), seat(1, 3), seat(1, 1), seat(3, 1), seat(1, 2)}
	s := selector.New(open, selector.RowProximity)

	got, err := s.Locate(4)
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.SeatID{{Row: 1, Seat: 3}, {Row: 1, Seat: 1}, {Row: 1, Seat: 2}, {Row: 2, Seat: 1}}
	for i := range want {
		if got[i].SeatID != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], got[i].SeatID)
		}
	}
}

func TestLocate_ComprehensiveOnGrid(t *testing.T) {
	g, err := venue.New(venue.Layout{Rows: 2, SeatsPerRow: 5, CenterRowSeats: 1})
	if err != nil {
		t.Fatal(err)
	}
	s := selector.New(g, selector.Comprehensive)

	// row 1: seats 2 and 4 score 10, aisles 1 and 5 score 11, center seat 3 scores 15
	got, err := s.Locate(5)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{2, 4, 1, 5, 3}
	for i, num := range want {
		if got[i].Row != 1 || got[i].Seat != num {
			t.Errorf("position %d: expected R1S%d, got %v", i, num, got[i].SeatID)
		}
	}

	if open := len(g.OpenSeats()); open != 10 {
		t.Errorf("locate mutated the grid: %d open", open)
	}
}
