package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID         string          `bson:"_id"`
	Action     string          `bson:"action"`
	HoldID     int64           `bson:"hold_id"`
	Customer   string          `bson:"customer,omitempty"`
	Seats      []domain.SeatID `bson:"seats,omitempty"`
	Detail     string          `bson:"detail,omitempty"`
	OccurredAt time.Time       `bson:"occurred_at"`
	RecordedAt time.Time       `bson:"recorded_at"`
}

// LogEvent records one lifecycle event. messageID makes redelivered events
// land on the same document; an empty id gets a fresh one.
func (a *AuditLogger) LogEvent(ctx context.Context, messageID string, evt domain.Event) error {
	if messageID == "" {
		messageID = uuid.New().String()
	}
	log := AuditLog{
		ID:         messageID,
		Action:     evt.Type,
		HoldID:     evt.HoldID,
		Customer:   evt.Customer,
		Seats:      evt.Seats,
		Detail:     evt.Detail,
		OccurredAt: evt.OccurredAt,
		RecordedAt: time.Now(),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		a.logger.WithField("message_id", messageID).Debug("audit log already recorded")
		return nil
	}
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return errors.Wrap(err, "mongo.AuditLogger.LogEvent")
	}
	return nil
}

// HoldHistory returns the audit trail of one hold, oldest first.
func (a *AuditLogger) HoldHistory(ctx context.Context, holdID int64) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"hold_id": holdID},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "mongo.AuditLogger.HoldHistory")
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, errors.Wrap(err, "mongo.AuditLogger.HoldHistory")
	}
	return logs, nil
}
