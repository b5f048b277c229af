package holds

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"github.com/robertarktes/seat-reservations/internal/outbox"
)

// SeatReleaser is the part of the seat grid the reconciler needs.
type SeatReleaser interface {
	Unhold(row, seat int) (domain.Seat, error)
}

type SweepResult struct {
	Expired   int
	Released  int
	Anomalies int
}

// Reconciler periodically evicts holds older than the registry TTL and
// returns their seats to OPEN. Seats that were reserved in the meantime stay
// RESERVED; the collision is reported as an anomaly.
type Reconciler struct {
	registry *Registry
	grid     SeatReleaser
	interval time.Duration
	events   outbox.Sink
	logger   observability.Logger
}

func NewReconciler(registry *Registry, grid SeatReleaser, interval time.Duration, events outbox.Sink, logger observability.Logger) *Reconciler {
	if events == nil {
		events = outbox.Discard
	}
	return &Reconciler{
		registry: registry,
		grid:     grid,
		interval: interval,
		events:   events,
		logger:   logger.WithField("component", "reconciler"),
	}
}

// Run sweeps on every tick until ctx is cancelled. A sweep that has started
// is not interrupted by cancellation. Run may be called again after it
// returns to restart the schedule.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithFields(map[string]interface{}{
		"ttl":      r.registry.TTL().String(),
		"interval": r.interval.String(),
	}).Info("reconciler started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(context.WithoutCancel(ctx), r.registry.Now()); err != nil {
				r.logger.WithError(err).Error("sweep failed")
			}
		}
	}
}

// Sweep performs one pass over the holds that are expired as of now.
func (r *Reconciler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := time.Now()
	defer func() {
		observability.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var res SweepResult
	expired, err := r.registry.Expired(ctx, now)
	if err != nil {
		return res, errors.Wrap(err, "holds.Reconciler.Sweep")
	}

	for _, candidate := range expired {
		var released []domain.SeatID
		anomalies := 0

		err := r.registry.Settle(ctx, candidate.ID, func(hold domain.Hold) error {
			for _, id := range hold.Seats {
				if _, err := r.grid.Unhold(id.Row, id.Seat); err != nil {
					// RESERVED stays RESERVED; the hold is evicted regardless.
					anomalies++
					r.anomaly(hold, id, err)
					continue
				}
				released = append(released, id)
			}
			return nil
		})
		if errors.Is(err, domain.ErrNoSuchHold) {
			continue
		}
		if err != nil {
			r.logger.WithError(err).WithField("hold_id", candidate.ID).Error("failed to expire hold")
			continue
		}

		res.Expired++
		res.Released += len(released)
		res.Anomalies += anomalies
		observability.HoldsExpired.Inc()
		r.events.Enqueue(domain.Event{
			Type:       domain.EventHoldExpired,
			HoldID:     candidate.ID,
			Customer:   candidate.Customer,
			Seats:      released,
			OccurredAt: now,
		})
	}

	if res.Expired > 0 {
		r.logger.WithFields(map[string]interface{}{
			"expired":   res.Expired,
			"released":  res.Released,
			"anomalies": res.Anomalies,
		}).Info("sweep completed")
	}
	return res, nil
}

func (r *Reconciler) anomaly(hold domain.Hold, seat domain.SeatID, err error) {
	observability.SeatAnomalies.WithLabelValues("reconciler").Inc()
	log := r.logger.WithError(err).WithFields(map[string]interface{}{
		"hold_id": hold.ID,
		"seat":    seat.String(),
	})
	if errors.Is(err, domain.ErrSeatAlreadyReserved) {
		log.Warn("seat reserved before expiry")
	} else {
		log.Error("seat state diverged from hold")
	}
	r.events.Enqueue(domain.Event{
		Type:       domain.EventSeatAnomaly,
		HoldID:     hold.ID,
		Customer:   hold.Customer,
		Seats:      []domain.SeatID{seat},
		Detail:     err.Error(),
		OccurredAt: time.Now(),
	})
}
