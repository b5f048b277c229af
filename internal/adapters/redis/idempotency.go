package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const (
	idempPrefix = "sr:idemp:"
	claimTries  = 3
)

type Idempotency struct {
	client redis.UniversalClient
}

func NewIdempotency(client redis.UniversalClient) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is the record kept per key. Status is zero while the
// request that claimed the key is still running.
type IdempResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Result      []byte `json:"result,omitempty"`
}

// Get returns nil without error when nothing is stored under key.
func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, idempPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis.Idempotency.Get")
	}
	var resp IdempResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "redis.Idempotency.Get")
	}
	return &resp, nil
}

// Claim stores rec under key if the key is free and returns nil. If another
// request got there first, its record is returned instead.
func (i *Idempotency) Claim(ctx context.Context, key string, rec IdempResponse, ttl time.Duration) (*IdempResponse, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "redis.Idempotency.Claim")
	}
	for try := 0; try < claimTries; try++ {
		ok, err := i.client.SetNX(ctx, idempPrefix+key, data, ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis.Idempotency.Claim")
		}
		if ok {
			return nil, nil
		}
		existing, err := i.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		// the other record expired between SETNX and GET
	}
	return nil, errors.Newf("redis.Idempotency.Claim: key %s kept changing", key)
}

// Set overwrites the record under key.
func (i *Idempotency) Set(ctx context.Context, key string, rec IdempResponse, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "redis.Idempotency.Set")
	}
	if err := i.client.Set(ctx, idempPrefix+key, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis.Idempotency.Set")
	}
	return nil
}

func (i *Idempotency) Delete(ctx context.Context, key string) error {
	if err := i.client.Del(ctx, idempPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis.Idempotency.Delete")
	}
	return nil
}
