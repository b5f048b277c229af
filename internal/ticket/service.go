package ticket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/holds"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"github.com/robertarktes/seat-reservations/internal/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	detailBlankEmail    = "email address is null or blank"
	detailInvalidCount  = "unable to locate 0 or negative seats in the venue"
	detailNoVenue       = "no venue configured"
	detailSeatsAltered  = "seat state has been altered"
	detailHoldSucceeded = "seats held"
)

// SeatGrid is the seat state the service orchestrates.
type SeatGrid interface {
	OpenSeats() []domain.Seat
	Counts() domain.SeatCounts
	Hold(row, seat int, holder string) (domain.Seat, error)
	Reserve(row, seat int, holder string) (domain.Seat, error)
	Unhold(row, seat int) (domain.Seat, error)
}

type SeatLocator interface {
	Locate(n int) ([]domain.Seat, error)
}

type Option func(*Service)

func WithEvents(events outbox.Sink) Option {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service composes seat selection, seat state and the hold registry into
// the availability, find-and-hold and reserve operations.
type Service struct {
	grid     SeatGrid
	selector SeatLocator
	registry *holds.Registry
	events   outbox.Sink
	logger   observability.Logger
	tracer   trace.Tracer

	// selection and per-seat holds form one exclusion domain
	holdMu sync.Mutex
}

// NewService wires the collaborators. They are fixed for the lifetime of
// the service. A nil grid is allowed and reports no availability.
func NewService(grid SeatGrid, selector SeatLocator, registry *holds.Registry, opts ...Option) *Service {
	s := &Service{
		grid:     grid,
		selector: selector,
		registry: registry,
		events:   outbox.Discard,
		logger:   observability.NewNopLogger(),
		tracer:   otel.Tracer("ticket"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "ticket")
	return s
}

func (s *Service) SeatsAvailable() int {
	if s.grid == nil {
		return 0
	}
	n := len(s.grid.OpenSeats())
	observability.OpenSeats.Set(float64(n))
	return n
}

func (s *Service) Counts() domain.SeatCounts {
	if s.grid == nil {
		return domain.SeatCounts{}
	}
	return s.grid.Counts()
}

func (s *Service) HoldCount(ctx context.Context) (int, error) {
	return s.registry.Count(ctx)
}

// FindAndHoldSeats holds the count best seats for email. Parameter and
// availability failures come back as a Hold with a failure status; the
// error is non-nil only when the hold could not be stored.
func (s *Service) FindAndHoldSeats(ctx context.Context, count int, email string) (domain.Hold, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.FindAndHoldSeats", trace.WithAttributes(attribute.Int("seats.requested", count)))
	defer span.End()

	hold := domain.Hold{Customer: email, RequestedCount: count}

	if strings.TrimSpace(email) == "" {
		return s.reject(hold, domain.HoldFailureInvalidParameters, detailBlankEmail), nil
	}
	if count <= 0 {
		return s.reject(hold, domain.HoldFailureInvalidParameters, detailInvalidCount), nil
	}
	if s.grid == nil {
		return s.reject(hold, domain.HoldFailureInsufficientSeats, detailNoVenue), nil
	}

	held, err := s.holdBest(count, email)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return s.reject(hold, domain.HoldFailureInvalidParameters, domain.ErrInvalidRequest.Error()), nil
	case errors.Is(err, domain.ErrInsufficientSeats):
		return s.reject(hold, domain.HoldFailureInsufficientSeats, domain.ErrInsufficientSeats.Error()), nil
	case errors.Is(err, domain.ErrSeatUnavailable):
		return s.reject(hold, domain.HoldFailureInsufficientSeats, detailSeatsAltered), nil
	case err != nil:
		span.RecordError(err)
		return domain.Hold{}, errors.Wrap(err, "ticket.Service.FindAndHoldSeats")
	}

	hold.Seats = held
	hold.Status = domain.HoldSuccess
	hold.StatusDetail = detailHoldSucceeded

	saved, err := s.registry.Register(ctx, hold)
	if err != nil {
		s.release(held)
		span.RecordError(err)
		return domain.Hold{}, errors.Wrap(err, "ticket.Service.FindAndHoldSeats")
	}

	observability.HoldsTotal.WithLabelValues(string(domain.HoldSuccess)).Inc()
	span.SetAttributes(attribute.Int64("hold.id", saved.ID))
	s.logger.WithFields(map[string]interface{}{
		"hold_id": saved.ID,
		"seats":   len(saved.Seats),
	}).Info("seats held")
	s.events.Enqueue(domain.Event{
		Type:       domain.EventHoldCreated,
		HoldID:     saved.ID,
		Customer:   saved.Customer,
		Seats:      saved.Seats,
		OccurredAt: saved.CreatedAt,
	})
	return saved, nil
}

// holdBest selects and holds count seats. On any failure the seats already
// held in this call are released before returning.
func (s *Service) holdBest(count int, email string) ([]domain.SeatID, error) {
	s.holdMu.Lock()
	defer s.holdMu.Unlock()

	located, err := s.selector.Locate(count)
	if err != nil {
		return nil, err
	}

	held := make([]domain.SeatID, 0, len(located))
	for _, seat := range located {
		if _, err := s.grid.Hold(seat.Row, seat.Seat, email); err != nil {
			s.release(held)
			return nil, err
		}
		held = append(held, seat.SeatID)
	}
	return held, nil
}

func (s *Service) release(seats []domain.SeatID) {
	for _, id := range seats {
		if _, err := s.grid.Unhold(id.Row, id.Seat); err != nil {
			s.logger.WithError(err).WithField("seat", id.String()).Error("failed to release seat")
		}
	}
}

func (s *Service) reject(hold domain.Hold, status domain.HoldStatus, detail string) domain.Hold {
	hold.Status = status
	hold.StatusDetail = detail
	hold.Seats = nil
	observability.HoldsTotal.WithLabelValues(string(status)).Inc()
	s.logger.WithFields(map[string]interface{}{
		"status":    string(status),
		"requested": hold.RequestedCount,
	}).Debug(detail)
	return hold
}

// ReserveSeats confirms a live hold and returns a confirmation code. An
// unknown hold or a different customer is an error matching
// domain.ErrInvalidParameter. Seats lost to a racing expiry are reported as
// anomalies and do not fail the call.
func (s *Service) ReserveSeats(ctx context.Context, holdID int64, email string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.ReserveSeats", trace.WithAttributes(attribute.Int64("hold.id", holdID)))
	defer span.End()

	if holdID < 0 {
		return "", errors.Wrapf(domain.ErrInvalidParameter, "hold id %d is negative", holdID)
	}
	if strings.TrimSpace(email) == "" {
		return "", errors.Wrap(domain.ErrInvalidParameter, detailBlankEmail)
	}
	if s.grid == nil {
		return "", unknownHold(holdID)
	}

	var (
		found    bool
		hold     domain.Hold
		reserved []domain.SeatID
	)
	err := s.registry.Settle(ctx, holdID, func(h domain.Hold) error {
		found = true
		if h.Customer != email {
			return errors.Mark(errors.Wrapf(domain.ErrHolderMismatch, "hold %d", holdID), domain.ErrInvalidParameter)
		}
		hold = h
		for _, id := range h.Seats {
			if _, err := s.grid.Reserve(id.Row, id.Seat, email); err != nil {
				s.anomaly(h, id, err)
				continue
			}
			reserved = append(reserved, id)
		}
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNoSuchHold) && !found:
		return "", unknownHold(holdID)
	case errors.Is(err, domain.ErrNoSuchHold):
		// expired concurrently after the seats were reserved
		s.logger.WithField("hold_id", holdID).Debug("hold already removed")
	case err != nil:
		span.RecordError(err)
		return "", err
	}

	code := uuid.NewString()
	observability.ReservationsTotal.Inc()
	s.logger.WithFields(map[string]interface{}{
		"hold_id":  holdID,
		"reserved": len(reserved),
		"held":     len(hold.Seats),
	}).Info("hold reserved")
	s.events.Enqueue(domain.Event{
		Type:       domain.EventHoldReserved,
		HoldID:     holdID,
		Customer:   email,
		Seats:      reserved,
		Detail:     code,
		OccurredAt: time.Now(),
	})
	return code, nil
}

func (s *Service) anomaly(hold domain.Hold, seat domain.SeatID, err error) {
	observability.SeatAnomalies.WithLabelValues("reserve").Inc()
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"hold_id": hold.ID,
		"seat":    seat.String(),
	}).Warn("seat not reserved")
	s.events.Enqueue(domain.Event{
		Type:       domain.EventSeatAnomaly,
		HoldID:     hold.ID,
		Customer:   hold.Customer,
		Seats:      []domain.SeatID{seat},
		Detail:     err.Error(),
		OccurredAt: time.Now(),
	})
}

// Rehydrate re-applies the holds found in a durable store to a fresh grid.
// Holds whose seats can no longer be held are dropped from the store.
func (s *Service) Rehydrate(ctx context.Context) (int, error) {
	if s.grid == nil {
		return 0, nil
	}

	live, err := s.registry.All(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "ticket.Service.Rehydrate")
	}

	s.holdMu.Lock()
	defer s.holdMu.Unlock()

	restored := 0
	for _, hold := range live {
		held := make([]domain.SeatID, 0, len(hold.Seats))
		var failed error
		for _, id := range hold.Seats {
			if _, err := s.grid.Hold(id.Row, id.Seat, hold.Customer); err != nil {
				failed = err
				break
			}
			held = append(held, id)
		}
		if failed != nil {
			s.release(held)
			s.logger.WithError(failed).WithField("hold_id", hold.ID).Warn("dropping hold that no longer fits the venue")
			if err := s.registry.Remove(ctx, hold.ID); err != nil && !errors.Is(err, domain.ErrNoSuchHold) {
				return restored, errors.Wrap(err, "ticket.Service.Rehydrate")
			}
			continue
		}
		restored++
	}
	observability.LiveHolds.Set(float64(restored))
	return restored, nil
}

func unknownHold(id int64) error {
	return errors.Mark(errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id), domain.ErrInvalidParameter)
}
