package rateLimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestAllow_FailsOpenWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	rl := NewRateLimiter(client)
	for i := 0; i < 3; i++ {
		if !rl.Allow(context.Background(), "ip:test", 1, time.Minute) {
			t.Fatalf("request %d rejected while redis is unreachable", i)
		}
	}
}
