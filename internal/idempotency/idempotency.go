package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/seat-reservations/internal/adapters/redis"
)

// claimTTL bounds how long a crashed request can keep its key locked.
const claimTTL = 30 * time.Second

var (
	ErrInFlight  = errors.New("idempotency: request with this key is still in flight")
	ErrKeyReused = errors.New("idempotency: key reused for a different request")
)

// Idempotency makes retried POSTs replay the first response instead of
// holding or reserving again. Keys are scoped to method and path, and the
// body must match the first request.
type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Request struct {
	Key    string
	Method string
	Path   string
	Body   []byte
}

func (r Request) storageKey() string {
	return r.Method + " " + r.Path + " " + r.Key
}

func (r Request) fingerprint() string {
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Begin claims req. It returns (nil, nil) when the caller owns the request
// and must call Finish or Release, the stored response when req already
// completed, ErrInFlight while another attempt runs, and ErrKeyReused when
// the key was first used with a different body. An empty key is never
// claimed.
func (i *Idempotency) Begin(ctx context.Context, req Request) (*Response, error) {
	if req.Key == "" {
		return nil, nil
	}
	fp := req.fingerprint()
	existing, err := i.redis.Claim(ctx, req.storageKey(), redisadapter.IdempResponse{Fingerprint: fp}, claimTTL)
	if err != nil {
		return nil, err
	}
	switch {
	case existing == nil:
		return nil, nil
	case existing.Fingerprint != fp:
		return nil, ErrKeyReused
	case existing.Status == 0:
		return nil, ErrInFlight
	}
	return &Response{Status: existing.Status, ContentType: existing.ContentType, Result: existing.Result}, nil
}

// Finish stores the response of a claimed request.
func (i *Idempotency) Finish(ctx context.Context, req Request, resp Response) error {
	if req.Key == "" {
		return nil
	}
	return i.redis.Set(ctx, req.storageKey(), redisadapter.IdempResponse{
		Fingerprint: req.fingerprint(),
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
	}, i.ttl)
}

// Release frees a claimed key so the request can be retried.
func (i *Idempotency) Release(ctx context.Context, req Request) error {
	if req.Key == "" {
		return nil
	}
	return i.redis.Delete(ctx, req.storageKey())
}
