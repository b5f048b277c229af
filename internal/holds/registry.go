package holds

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
)

const lockStripes = 64

// endOfTime bounds "every hold" queries; it stays representable in
// millisecond scores and SQL timestamps.
var endOfTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

type Option func(*Registry)

// WithClock replaces time.Now for creation stamps and expiry cutoffs.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry tracks live holds on top of a Store. Terminal transitions for
// one hold id are serialized through a striped lock so that a reservation
// and an expiry can never both settle the same hold.
type Registry struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	locks [lockStripes]sync.Mutex
}

func NewRegistry(store Store, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) TTL() time.Duration {
	return r.ttl
}

func (r *Registry) Now() time.Time {
	return r.now()
}

// Register stamps the hold with the current time and stores it under a
// fresh id. Callers register only after every seat has been held.
func (r *Registry) Register(ctx context.Context, hold domain.Hold) (domain.Hold, error) {
	hold.ID = 0
	hold.CreatedAt = stamp(r.now())

	saved, err := r.store.Save(ctx, hold)
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, "holds.Registry.Register")
	}
	observability.LiveHolds.Inc()
	return saved, nil
}

// stamp rounds t up to the next millisecond, the coarsest precision of the
// durable stores, so a stored hold never looks older than it is.
func stamp(t time.Time) time.Time {
	rounded := t.Truncate(time.Millisecond)
	if rounded.Before(t) {
		rounded = rounded.Add(time.Millisecond)
	}
	return rounded
}

func (r *Registry) Lookup(ctx context.Context, id int64) (domain.Hold, error) {
	return r.store.FindByID(ctx, id)
}

func (r *Registry) Remove(ctx context.Context, id int64) error {
	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	return r.remove(ctx, id)
}

func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Expired returns the holds created at or before now - ttl.
func (r *Registry) Expired(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	return r.store.CreatedBefore(ctx, now.Add(-r.ttl))
}

// All returns every live hold ordered by id.
func (r *Registry) All(ctx context.Context) ([]domain.Hold, error) {
	return r.store.CreatedBefore(ctx, endOfTime)
}

// Settle runs fn against the live hold with the given id and removes the
// hold when fn returns nil. A hold that is already gone yields
// domain.ErrNoSuchHold without calling fn. An error from fn leaves the hold
// registered.
func (r *Registry) Settle(ctx context.Context, id int64, fn func(domain.Hold) error) error {
	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	hold, err := r.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(hold); err != nil {
		return err
	}
	return r.remove(ctx, id)
}

func (r *Registry) remove(ctx context.Context, id int64) error {
	if err := r.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	observability.LiveHolds.Dec()
	return nil
}

func (r *Registry) lock(id int64) *sync.Mutex {
	idx := id % lockStripes
	if idx < 0 {
		idx = -idx
	}
	return &r.locks[idx]
}
