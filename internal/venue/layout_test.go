package venue_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/venue"
)

func TestNew_RejectsInvalidLayouts(t *testing.T) {
	cases := map[string]venue.Layout{
		"no rows":             {Rows: 0, SeatsPerRow: 10, CenterRowSeats: 2},
		"negative rows":       {Rows: -1, SeatsPerRow: 10, CenterRowSeats: 2},
		"no seats":            {Rows: 1, SeatsPerRow: 0, CenterRowSeats: 0},
		"negative seats":      {Rows: 1, SeatsPerRow: -1, CenterRowSeats: 0},
		"no center block":     {Rows: 1, SeatsPerRow: 10, CenterRowSeats: 0},
		"negative center":     {Rows: 1, SeatsPerRow: 10, CenterRowSeats: -1},
		"center exceeds size": {Rows: 1, SeatsPerRow: 3, CenterRowSeats: 4},
	}
	for name, layout := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := venue.New(layout); !errors.Is(err, domain.ErrInvalidLayout) {
				t.Errorf("expected invalid layout, got %v", err)
			}
		})
	}
}

func TestCenterSeat(t *testing.T) {
	for n, want := range map[int]int{1: 1, 2: 1, 3: 2, 5: 3, 6: 3, 9: 5, 10: 5} {
		if got := venue.CenterSeat(n); got != want {
			t.Errorf("CenterSeat(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestCenterBlock(t *testing.T) {
	cases := []struct {
		n, k, first int
	}{
		{1, 1, 1}, {2, 1, 1},
		{3, 1, 2}, {3, 2, 1}, {3, 3, 1},
		{4, 1, 2}, {4, 2, 2}, {4, 3, 1}, {4, 4, 1},
		{9, 1, 5}, {9, 2, 4}, {9, 3, 4}, {9, 4, 3}, {9, 5, 3},
		{9, 6, 2}, {9, 7, 2}, {9, 8, 1}, {9, 9, 1},
	}
	for _, c := range cases {
		first, last := venue.CenterBlock(c.n, c.k)
		if first != c.first {
			t.Errorf("CenterBlock(%d, %d) first = %d, want %d", c.n, c.k, first, c.first)
		}
		if last-first+1 != c.k {
			t.Errorf("CenterBlock(%d, %d) spans %d seats, want %d", c.n, c.k, last-first+1, c.k)
		}
	}
}

func TestNew_ClassifiesSeats(t *testing.T) {
	g, err := venue.New(venue.Layout{Rows: 1, SeatsPerRow: 10, CenterRowSeats: 4})
	if err != nil {
		t.Fatal(err)
	}

	seats := g.OpenSeats()
	if len(seats) != 10 {
		t.Fatalf("expected 10 seats, got %d", len(seats))
	}

	var aisle, centerRow, centerSeat int
	for _, s := range seats {
		if s.Aisle {
			aisle++
			if s.Seat != 1 && s.Seat != 10 {
				t.Errorf("seat %d flagged as aisle", s.Seat)
			}
		}
		if s.CenterRow {
			centerRow++
		}
		if s.CenterSeat {
			centerSeat++
			if s.Seat != 5 {
				t.Errorf("seat %d flagged as center seat", s.Seat)
			}
		}
	}
	if aisle != 2 {
		t.Errorf("expected 2 aisle seats, got %d", aisle)
	}
	if centerRow != 4 {
		t.Errorf("expected 4 center row seats, got %d", centerRow)
	}
	if centerSeat != 1 {
		t.Errorf("expected 1 center seat, got %d", centerSeat)
	}
}
