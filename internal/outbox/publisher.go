package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
)

const (
	maxPublishRetries = 3
	drainTimeout      = 5 * time.Second
)

// Sink accepts lifecycle events without blocking the caller.
type Sink interface {
	Enqueue(evt domain.Event) bool
}

type discard struct{}

func (discard) Enqueue(domain.Event) bool { return true }

// Discard drops every event. Used when no broker is configured.
var Discard Sink = discard{}

// Outbox is a bounded in-memory queue between the seat operations and the
// broker. Enqueue never blocks; a full outbox drops the event.
type Outbox struct {
	events chan domain.Event
}

func New(size int) *Outbox {
	return &Outbox{events: make(chan domain.Event, size)}
}

func (o *Outbox) Enqueue(evt domain.Event) bool {
	select {
	case o.events <- evt:
		return true
	default:
		observability.EventsDropped.Inc()
		return false
	}
}

func (o *Outbox) Len() int {
	return len(o.events)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	outbox  *Outbox
	broker  Broker
	logger  observability.Logger
	backoff time.Duration
}

func NewPublisher(outbox *Outbox, broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{outbox: outbox, broker: broker, logger: logger, backoff: 200 * time.Millisecond}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left with a bounded timeout.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain(ctx)
			return nil
		case evt := <-p.outbox.events:
			p.publish(ctx, evt)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	for {
		select {
		case evt := <-p.outbox.events:
			p.publish(dctx, evt)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, evt domain.Event) {
	log := p.logger.WithFields(map[string]interface{}{"event": evt.Type, "hold_id": evt.HoldID})

	if err := p.publishWithRetry(ctx, evt); err != nil {
		observability.EventsDropped.Inc()
		log.WithError(err).Error("failed to publish event")
		return
	}
	observability.EventsPublished.Inc()
	log.Debug("event published")
}

func (p *Publisher) publishWithRetry(ctx context.Context, evt domain.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := amqp.Publishing{
		MessageId:    uuid.New().String(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Type:         evt.Type,
		Body:         body,
	}

	for i := 0; i < maxPublishRetries; i++ {
		if err = p.broker.Publish(ctx, evt.Type, msg); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "publish cancelled")
		case <-time.After(time.Duration(1<<i) * p.backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", maxPublishRetries)
}
