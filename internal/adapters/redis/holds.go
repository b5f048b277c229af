package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

const (
	holdSeqKey   = "sr:holds:seq"
	holdIndexKey = "sr:holds:by_created"
	holdKeyPref  = "sr:hold:"
)

type holdRecord struct {
	ID             int64           `json:"id"`
	Customer       string          `json:"customer"`
	RequestedCount int             `json:"requested_count"`
	Seats          []domain.SeatID `json:"seats"`
	Status         string          `json:"status"`
	StatusDetail   string          `json:"status_detail"`
	CreatedAt      time.Time       `json:"created_at"`
}

// HoldStore keeps holds as JSON values with a sorted-set index on creation
// time. Ids come from INCR so they are monotonic across processes.
type HoldStore struct {
	client redis.UniversalClient
}

func NewHoldStore(client redis.UniversalClient) *HoldStore {
	return &HoldStore{client: client}
}

func holdKey(id int64) string {
	return holdKeyPref + strconv.FormatInt(id, 10)
}

func (s *HoldStore) Save(ctx context.Context, hold domain.Hold) (domain.Hold, error) {
	const op = "redis.HoldStore.Save"

	id, err := s.client.Incr(ctx, holdSeqKey).Result()
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	hold.ID = id

	data, err := json.Marshal(toRecord(hold))
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, holdKey(id), data, 0)
		pipe.ZAdd(ctx, holdIndexKey, redis.Z{Score: float64(hold.CreatedAt.UnixMilli()), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	return hold, nil
}

func (s *HoldStore) FindByID(ctx context.Context, id int64) (domain.Hold, error) {
	data, err := s.client.Get(ctx, holdKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Hold{}, errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, "redis.HoldStore.FindByID")
	}
	return decodeHold(data)
}

func (s *HoldStore) DeleteByID(ctx context.Context, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, holdKey(id))
		pipe.ZRem(ctx, holdIndexKey, strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis.HoldStore.DeleteByID")
	}
	if del.Val() == 0 {
		return errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	return nil
}

func (s *HoldStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, holdIndexKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis.HoldStore.Count")
	}
	return int(n), nil
}

func (s *HoldStore) CreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	const op = "redis.HoldStore.CreatedBefore"

	ids, err := s.client.ZRangeByScore(ctx, holdIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = holdKeyPref + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	out := make([]domain.Hold, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between the range and the fetch
			continue
		}
		hold, err := decodeHold([]byte(raw))
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		// the index has millisecond resolution
		if hold.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, hold)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toRecord(h domain.Hold) holdRecord {
	return holdRecord{
		ID:             h.ID,
		Customer:       h.Customer,
		RequestedCount: h.RequestedCount,
		Seats:          h.Seats,
		Status:         string(h.Status),
		StatusDetail:   h.StatusDetail,
		CreatedAt:      h.CreatedAt,
	}
}

func decodeHold(data []byte) (domain.Hold, error) {
	var rec holdRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Hold{}, errors.Wrap(err, "decode hold")
	}
	return domain.Hold{
		ID:             rec.ID,
		Customer:       rec.Customer,
		RequestedCount: rec.RequestedCount,
		Seats:          rec.Seats,
		Status:         domain.HoldStatus(rec.Status),
		StatusDetail:   rec.StatusDetail,
		CreatedAt:      rec.CreatedAt,
	}, nil
}
