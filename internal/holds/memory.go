package holds

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

type MemoryStore struct {
	mu    sync.RWMutex
	holds map[int64]domain.Hold
	seq   atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holds: make(map[int64]domain.Hold)}
}

func (m *MemoryStore) Save(_ context.Context, hold domain.Hold) (domain.Hold, error) {
	hold.ID = m.seq.Add(1)
	stored := hold
	stored.Seats = slices.Clone(hold.Seats)

	m.mu.Lock()
	m.holds[hold.ID] = stored
	m.mu.Unlock()
	return hold, nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (domain.Hold, error) {
	m.mu.RLock()
	hold, ok := m.holds[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Hold{}, errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	hold.Seats = slices.Clone(hold.Seats)
	return hold, nil
}

func (m *MemoryStore) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holds[id]; !ok {
		return errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	delete(m.holds, id)
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.holds), nil
}

func (m *MemoryStore) CreatedBefore(_ context.Context, cutoff time.Time) ([]domain.Hold, error) {
	m.mu.RLock()
	var out []domain.Hold
	for _, h := range m.holds {
		if !h.CreatedAt.After(cutoff) {
			h.Seats = slices.Clone(h.Seats)
			out = append(out, h)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
