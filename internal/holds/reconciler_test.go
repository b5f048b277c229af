package holds_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/holds"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"github.com/robertarktes/seat-reservations/internal/venue"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *capturedEvents) Enqueue(evt domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return true
}

func (c *capturedEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func holdSeats(t *testing.T, g *venue.Grid, customer string, seats ...domain.SeatID) {
	t.Helper()
	for _, s := range seats {
		if _, err := g.Hold(s.Row, s.Seat, customer); err != nil {
			t.Fatal(err)
		}
	}
}

func newFixture(t *testing.T, ttl time.Duration) (*venue.Grid, *holds.Registry, *fakeClock, *capturedEvents, *holds.Reconciler) {
	t.Helper()
	g, err := venue.New(venue.Layout{Rows: 1, SeatsPerRow: 5, CenterRowSeats: 1})
	if err != nil {
		t.Fatal(err)
	}
	clock := newFakeClock()
	reg := holds.NewRegistry(holds.NewMemoryStore(), ttl, holds.WithClock(clock.Now))
	events := &capturedEvents{}
	rec := holds.NewReconciler(reg, g, time.Hour, events, observability.NewNopLogger())
	return g, reg, clock, events, rec
}

func TestReconciler_SweepHonoursTTL(t *testing.T) {
	ctx := context.Background()
	g, reg, clock, events, rec := newFixture(t, time.Minute)

	seats := []domain.SeatID{{Row: 1, Seat: 1}, {Row: 1, Seat: 2}}
	holdSeats(t, g, "a@x.com", seats...)
	if _, err := reg.Register(ctx, newHold("a@x.com", seats...)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(59 * time.Second)
	res, err := rec.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 0 {
		t.Fatalf("expected nothing expired before ttl, got %+v", res)
	}
	if c := g.Counts(); c.Held != 2 {
		t.Errorf("expected 2 held seats, got %+v", c)
	}

	clock.Advance(time.Second)
	res, err = rec.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 1 || res.Released != 2 || res.Anomalies != 0 {
		t.Errorf("unexpected sweep result %+v", res)
	}
	if c := g.Counts(); c.Open != 5 {
		t.Errorf("expected all seats open, got %+v", c)
	}
	if n, _ := reg.Count(ctx); n != 0 {
		t.Errorf("expected 0 live holds, got %d", n)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventHoldExpired {
		t.Errorf("unexpected events %v", got)
	}
}

func TestReconciler_ReservedSeatsStayReserved(t *testing.T) {
	ctx := context.Background()
	g, reg, clock, events, rec := newFixture(t, time.Minute)

	seats := []domain.SeatID{{Row: 1, Seat: 1}, {Row: 1, Seat: 2}}
	holdSeats(t, g, "a@x.com", seats...)
	if _, err := reg.Register(ctx, newHold("a@x.com", seats...)); err != nil {
		t.Fatal(err)
	}
	// a reservation reached the grid before the sweep
	if _, err := g.Reserve(1, 1, "a@x.com"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	res, err := rec.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 1 || res.Released != 1 || res.Anomalies != 1 {
		t.Errorf("unexpected sweep result %+v", res)
	}

	if s, _ := g.Seat(1, 1); s.State != domain.SeatReserved {
		t.Errorf("reserved seat reverted to %s", s.State)
	}
	if s, _ := g.Seat(1, 2); s.State != domain.SeatOpen {
		t.Errorf("expected released seat open, got %s", s.State)
	}
	if n, _ := reg.Count(ctx); n != 0 {
		t.Errorf("expected hold removed, got %d live", n)
	}

	types := events.types()
	if len(types) != 2 || types[0] != domain.EventSeatAnomaly || types[1] != domain.EventHoldExpired {
		t.Errorf("unexpected events %v", types)
	}
}

func TestReconciler_SkipsSettledHolds(t *testing.T) {
	ctx := context.Background()
	g, reg, clock, _, rec := newFixture(t, time.Minute)

	seats := []domain.SeatID{{Row: 1, Seat: 3}}
	holdSeats(t, g, "a@x.com", seats...)
	hold, err := reg.Register(ctx, newHold("a@x.com", seats...))
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	expired, _ := reg.Expired(ctx, clock.Now())
	if len(expired) != 1 {
		t.Fatalf("expected one expired hold, got %d", len(expired))
	}
	if err := reg.Remove(ctx, hold.ID); err != nil {
		t.Fatal(err)
	}

	res, err := rec.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 0 {
		t.Errorf("expected removed hold to be skipped, got %+v", res)
	}
	if s, _ := g.Seat(1, 3); s.State != domain.SeatHeld {
		t.Errorf("expected seat untouched, got %s", s.State)
	}
}

func TestReconciler_RunExpiresOnSchedule(t *testing.T) {
	ctx := context.Background()
	g, err := venue.New(venue.Layout{Rows: 1, SeatsPerRow: 5, CenterRowSeats: 1})
	if err != nil {
		t.Fatal(err)
	}
	reg := holds.NewRegistry(holds.NewMemoryStore(), 50*time.Millisecond)
	rec := holds.NewReconciler(reg, g, 10*time.Millisecond, nil, observability.NewNopLogger())

	holdSeats(t, g, "a@x.com", domain.SeatID{Row: 1, Seat: 1})
	if _, err := reg.Register(ctx, newHold("a@x.com", domain.SeatID{Row: 1, Seat: 1})); err != nil {
		t.Fatal(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = rec.Run(runCtx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if n, _ := reg.Count(ctx); n != 0 {
		t.Errorf("expected hold expired, got %d live", n)
	}
	if open := len(g.OpenSeats()); open != 5 {
		t.Errorf("expected 5 open seats, got %d", open)
	}

	// the schedule restarts after a stop
	holdSeats(t, g, "b@y.com", domain.SeatID{Row: 1, Seat: 2})
	if _, err := reg.Register(ctx, newHold("b@y.com", domain.SeatID{Row: 1, Seat: 2})); err != nil {
		t.Fatal(err)
	}
	runCtx, cancel = context.WithCancel(ctx)
	done = make(chan struct{})
	go func() {
		_ = rec.Run(runCtx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if n, _ := reg.Count(ctx); n != 0 {
		t.Errorf("expected restarted reconciler to expire hold, got %d live", n)
	}
}
