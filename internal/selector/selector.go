package selector

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

const (
	rowMultiplier    = 10
	centerSeatWeight = 3
	centerRowWeight  = 2
	aisleSeatWeight  = 1
)

// Ranking scores a seat; lower is better.
type Ranking func(domain.Seat) int

// RowProximity ranks purely by distance from the stage.
func RowProximity(s domain.Seat) int {
	return s.Row
}

// Comprehensive weights row distance first, then center seat, center row
// and aisle.
func Comprehensive(s domain.Seat) int {
	score := s.Row * rowMultiplier
	if s.CenterSeat {
		score += centerSeatWeight
	}
	if s.CenterRow {
		score += centerRowWeight
	}
	if s.Aisle {
		score += aisleSeatWeight
	}
	return score
}

// Rankings maps the configured ranking names to their implementation.
var Rankings = map[string]Ranking{
	"row":           RowProximity,
	"comprehensive": Comprehensive,
}

type OpenSeatSource interface {
	OpenSeats() []domain.Seat
}

type Selector struct {
	grid OpenSeatSource
	rank Ranking
}

func New(grid OpenSeatSource, rank Ranking) *Selector {
	if rank == nil {
		rank = RowProximity
	}
	return &Selector{grid: grid, rank: rank}
}

// Locate returns the n best-ranked open seats without touching their state.
func (s *Selector) Locate(n int) ([]domain.Seat, error) {
	if n <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidRequest, "requested %d", n)
	}

	open := s.grid.OpenSeats()
	if n > len(open) {
		return nil, errors.Wrapf(domain.ErrInsufficientSeats, "requested %d, open %d", n, len(open))
	}

	scores := make([]int, len(open))
	for i := range open {
		scores[i] = s.rank(open[i])
	}
	idx := make([]int, len(open))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})

	located := make([]domain.Seat, n)
	for i := 0; i < n; i++ {
		located[i] = open[idx[i]]
	}
	return located, nil
}
