package mongo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mongoadapter "github.com/robertarktes/seat-reservations/internal/adapters/mongo"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
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
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatal(err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })
	return client.Database("seats_test")
}

func TestHoldStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := mongoadapter.NewHoldStore(startMongo(t))
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}

	created := time.Now().UTC()
	first, err := store.Save(ctx, domain.Hold{
		Customer:       "a@x.com",
		RequestedCount: 1,
		Seats:          []domain.SeatID{{Row: 3, Seat: 4}},
		Status:         domain.HoldSuccess,
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Save(ctx, domain.Hold{
		Customer:  "b@y.com",
		Seats:     []domain.SeatID{{Row: 3, Seat: 5}},
		Status:    domain.HoldSuccess,
		CreatedAt: created.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}

	got, err := store.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Customer != "a@x.com" || len(got.Seats) != 1 || got.Seats[0] != (domain.SeatID{Row: 3, Seat: 4}) {
		t.Errorf("unexpected hold %+v", got)
	}

	expired, err := store.CreatedBefore(ctx, created.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != first.ID {
		t.Errorf("expected only the first hold, got %+v", expired)
	}

	if err := store.DeleteByID(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteByID(ctx, first.ID); !errors.Is(err, domain.ErrNoSuchHold) {
		t.Errorf("expected no such hold, got %v", err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("expected 1 hold, got %d", n)
	}
}

func TestAuditLogger_DeduplicatesByMessageID(t *testing.T) {
	ctx := context.Background()
	audit := mongoadapter.NewAuditLogger(startMongo(t), observability.NewNopLogger())

	evt := domain.Event{Type: domain.EventHoldCreated, HoldID: 7, Customer: "a@x.com", OccurredAt: time.Now().UTC()}
	for i := 0; i < 2; i++ {
		if err := audit.LogEvent(ctx, "msg-1", evt); err != nil {
			t.Fatal(err)
		}
	}
	evt.Type = domain.EventHoldExpired
	evt.OccurredAt = evt.OccurredAt.Add(time.Minute)
	if err := audit.LogEvent(ctx, "msg-2", evt); err != nil {
		t.Fatal(err)
	}

	history, err := audit.HoldHistory(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Action != domain.EventHoldCreated || history[1].Action != domain.EventHoldExpired {
		t.Errorf("unexpected history %+v", history)
	}
}
