package holds

import (
	"context"
	"time"

	"github.com/robertarktes/seat-reservations/internal/domain"
)

// Store is the backing storage for live holds. The in-memory map and the
// durable adapters (mongo, crdb, redis) all satisfy it with the same
// semantics:
//   - Save assigns a fresh, monotonically increasing id.
//   - FindByID and DeleteByID return domain.ErrNoSuchHold for absent ids.
//   - DeleteByID succeeds at most once per id.
//   - CreatedBefore returns holds with CreatedAt <= cutoff ordered by id.
type Store interface {
	Save(ctx context.Context, hold domain.Hold) (domain.Hold, error)
	FindByID(ctx context.Context, id int64) (domain.Hold, error)
	DeleteByID(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Hold, error)
}
