package venue

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

type seat struct {
	state  domain.SeatState
	holder string

	aisle      bool
	centerRow  bool
	centerSeat bool
}

// Grid owns the state of every seat in one venue. All mutators take the
// write lock; snapshots take the read lock, so a reader never observes a
// seat mid-transition.
type Grid struct {
	mu    sync.RWMutex
	rows  [][]seat
	total int
}

func New(layout Layout) (*Grid, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	rows := make([][]seat, layout.Rows)
	for i := range rows {
		rows[i] = newRow(layout.SeatsPerRow, layout.CenterRowSeats)
	}
	return &Grid{rows: rows, total: layout.Rows * layout.SeatsPerRow}, nil
}

func (g *Grid) Rows() int {
	return len(g.rows)
}

func (g *Grid) TotalSeats() int {
	return g.total
}

// OpenSeats returns every OPEN seat in row-major, seat-number order.
func (g *Grid) OpenSeats() []domain.Seat {
	g.mu.RLock()
	defer g.mu.RUnlock()

	open := make([]domain.Seat, 0, g.total)
	for r, row := range g.rows {
		for s := range row {
			if row[s].state == domain.SeatOpen {
				open = append(open, snapshot(r+1, s+1, &row[s]))
			}
		}
	}
	return open
}

func (g *Grid) Counts() domain.SeatCounts {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := domain.SeatCounts{Total: g.total}
	for _, row := range g.rows {
		for s := range row {
			switch row[s].state {
			case domain.SeatOpen:
				counts.Open++
			case domain.SeatHeld:
				counts.Held++
			case domain.SeatReserved:
				counts.Reserved++
			}
		}
	}
	return counts
}

func (g *Grid) Seat(row, num int) (domain.Seat, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, err := g.lookup(row, num)
	if err != nil {
		return domain.Seat{}, err
	}
	return snapshot(row, num, s), nil
}

// Hold moves an OPEN seat to HELD on behalf of holder.
func (g *Grid) Hold(row, num int, holder string) (domain.Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.lookup(row, num)
	if err != nil {
		return domain.Seat{}, err
	}
	if s.state != domain.SeatOpen {
		return snapshot(row, num, s), errors.Wrapf(domain.ErrSeatUnavailable, "row %d seat %d is %s", row, num, s.state)
	}

	s.state = domain.SeatHeld
	s.holder = holder
	return snapshot(row, num, s), nil
}

// Reserve promotes a HELD seat to RESERVED. A seat that is already RESERVED
// reports ErrSeatNotHeld like an OPEN one.
func (g *Grid) Reserve(row, num int, holder string) (domain.Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.lookup(row, num)
	if err != nil {
		return domain.Seat{}, err
	}
	if s.state != domain.SeatHeld {
		return snapshot(row, num, s), errors.Wrapf(domain.ErrSeatNotHeld, "row %d seat %d is %s", row, num, s.state)
	}
	if s.holder != holder {
		return snapshot(row, num, s), errors.Wrapf(domain.ErrHolderMismatch, "row %d seat %d", row, num)
	}

	s.state = domain.SeatReserved
	return snapshot(row, num, s), nil
}

// Unhold releases a HELD seat back to OPEN. RESERVED seats are never released.
func (g *Grid) Unhold(row, num int) (domain.Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.lookup(row, num)
	if err != nil {
		return domain.Seat{}, err
	}
	switch s.state {
	case domain.SeatReserved:
		return snapshot(row, num, s), errors.Wrapf(domain.ErrSeatAlreadyReserved, "row %d seat %d", row, num)
	case domain.SeatOpen:
		return snapshot(row, num, s), errors.Wrapf(domain.ErrSeatAlreadyOpen, "row %d seat %d", row, num)
	}

	s.state = domain.SeatOpen
	s.holder = ""
	return snapshot(row, num, s), nil
}

// lookup must be called with g.mu held.
func (g *Grid) lookup(row, num int) (*seat, error) {
	if row < 1 || row > len(g.rows) {
		return nil, errors.Wrapf(domain.ErrSeatNotFound, "row %d does not exist", row)
	}
	r := g.rows[row-1]
	if num < 1 || num > len(r) {
		return nil, errors.Wrapf(domain.ErrSeatNotFound, "row %d seat %d does not exist", row, num)
	}
	return &r[num-1], nil
}

func snapshot(row, num int, s *seat) domain.Seat {
	return domain.Seat{
		SeatID:     domain.SeatID{Row: row, Seat: num},
		State:      s.state,
		Holder:     s.holder,
		Aisle:      s.aisle,
		CenterRow:  s.centerRow,
		CenterSeat: s.centerSeat,
	}
}
