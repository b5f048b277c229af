package main

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
)

type AuditSink interface {
	LogEvent(ctx context.Context, messageID string, evt domain.Event) error
}

// AuditWorker copies lifecycle events from the broker into the audit log.
type AuditWorker struct {
	sink   AuditSink
	logger observability.Logger
}

func NewAuditWorker(sink AuditSink, logger observability.Logger) *AuditWorker {
	return &AuditWorker{sink: sink, logger: logger}
}

// Run handles deliveries until ctx is cancelled or the channel closes.
func (w *AuditWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *AuditWorker) handle(ctx context.Context, msg amqp.Delivery) {
	log := w.logger.WithFields(map[string]interface{}{
		"message_id":  msg.MessageId,
		"routing_key": msg.RoutingKey,
	})

	var evt domain.Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		log.WithError(err).Error("undecodable event, dropping")
		msg.Nack(false, false)
		return
	}

	if err := w.sink.LogEvent(ctx, msg.MessageId, evt); err != nil {
		log.WithError(err).Warn("failed to record event, requeueing")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
	log.Debug("event recorded")
}
