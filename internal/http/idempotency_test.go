package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/seat-reservations/internal/adapters/redis"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/idempotency"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startIdempotency(t *testing.T) *idempotency.Idempotency {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatal(err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	return idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
}

func counts(t *testing.T, base string) domain.SeatCounts {
	t.Helper()
	resp, err := http.Get(base + "/v1/seats/counts")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var c domain.SeatCounts
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIdempotentHoldIsReplayed(t *testing.T) {
	srv := newServer(t, startIdempotency(t), nil)
	const key = "hold-0001-retry-key"
	body := map[string]interface{}{"count": 3, "customer_email": "a@example.com"}

	first := postWithKey(t, srv.URL+"/v1/holds", key, body)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	var firstHold holdResponse
	if err := json.NewDecoder(first.Body).Decode(&firstHold); err != nil {
		t.Fatal(err)
	}

	second := postWithKey(t, srv.URL+"/v1/holds", key, body)
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.StatusCode)
	}
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Error("expected Idempotent-Replayed header")
	}
	if ct := second.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}
	var secondHold holdResponse
	if err := json.NewDecoder(second.Body).Decode(&secondHold); err != nil {
		t.Fatal(err)
	}
	if secondHold.ID != firstHold.ID {
		t.Errorf("expected hold %d replayed, got %d", firstHold.ID, secondHold.ID)
	}
	if got := available(t, srv.URL); got != 12 {
		t.Fatalf("retry held more seats: %d available", got)
	}
}

func TestIdempotencyKeyIsScopedToRoute(t *testing.T) {
	srv := newServer(t, startIdempotency(t), nil)
	const key = "client-key-shared-across-calls"

	resp := postWithKey(t, srv.URL+"/v1/holds", key, map[string]interface{}{"count": 2, "customer_email": "a@example.com"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var hold holdResponse
	if err := json.NewDecoder(resp.Body).Decode(&hold); err != nil {
		t.Fatal(err)
	}

	reserveURL := srv.URL + "/v1/holds/" + strconv.FormatInt(hold.ID, 10) + "/reserve"
	resp = postWithKey(t, reserveURL, key, map[string]string{"customer_email": "a@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from reserve, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Idempotent-Replayed") != "" {
		t.Fatal("reserve answered with a response cached for another route")
	}
	var confirmed struct {
		ConfirmationCode string `json:"confirmation_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&confirmed); err != nil {
		t.Fatal(err)
	}
	if confirmed.ConfirmationCode == "" {
		t.Fatal("expected a confirmation code")
	}

	c := counts(t, srv.URL)
	if c.Reserved != 2 || c.Held != 0 {
		t.Fatalf("expected 2 reserved seats, got %+v", c)
	}
}

func TestIdempotencyKeyWithDifferentBodyRejected(t *testing.T) {
	srv := newServer(t, startIdempotency(t), nil)
	const key = "hold-0002-retry-key"

	resp := postWithKey(t, srv.URL+"/v1/holds", key, map[string]interface{}{"count": 1, "customer_email": "a@example.com"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp = postWithKey(t, srv.URL+"/v1/holds", key, map[string]interface{}{"count": 4, "customer_email": "a@example.com"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if got := available(t, srv.URL); got != 14 {
		t.Fatalf("expected 14 available, got %d", got)
	}
}
