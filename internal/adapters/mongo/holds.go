package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservations/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const holdsCounter = "seat_holds"

type holdDoc struct {
	ID             int64           `bson:"_id"`
	Customer       string          `bson:"customer"`
	RequestedCount int             `bson:"requested_count"`
	Seats          []domain.SeatID `bson:"seats"`
	Status         string          `bson:"status"`
	StatusDetail   string          `bson:"status_detail"`
	CreatedAt      time.Time       `bson:"created_at"`
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// HoldStore persists holds in the seat_holds collection. Ids are drawn from
// an atomically incremented document in counters.
type HoldStore struct {
	holds    *mongo.Collection
	counters *mongo.Collection
}

func NewHoldStore(db *mongo.Database) *HoldStore {
	return &HoldStore{
		holds:    db.Collection("seat_holds"),
		counters: db.Collection("counters"),
	}
}

func (s *HoldStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.holds.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	})
	return errors.Wrap(err, "mongo.HoldStore.EnsureIndexes")
}

func (s *HoldStore) nextID(ctx context.Context) (int64, error) {
	var c counterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": holdsCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, err
	}
	return c.Seq, nil
}

func (s *HoldStore) Save(ctx context.Context, hold domain.Hold) (domain.Hold, error) {
	const op = "mongo.HoldStore.Save"

	id, err := s.nextID(ctx)
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	hold.ID = id
	// BSON dates carry milliseconds only
	hold.CreatedAt = hold.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := s.holds.InsertOne(ctx, toDoc(hold)); err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	return hold, nil
}

func (s *HoldStore) FindByID(ctx context.Context, id int64) (domain.Hold, error) {
	var doc holdDoc
	err := s.holds.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Hold{}, errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, "mongo.HoldStore.FindByID")
	}
	return fromDoc(doc), nil
}

func (s *HoldStore) DeleteByID(ctx context.Context, id int64) error {
	res, err := s.holds.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "mongo.HoldStore.DeleteByID")
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	return nil
}

func (s *HoldStore) Count(ctx context.Context) (int, error) {
	n, err := s.holds.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "mongo.HoldStore.Count")
	}
	return int(n), nil
}

func (s *HoldStore) CreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	const op = "mongo.HoldStore.CreatedBefore"

	cur, err := s.holds.Find(ctx,
		bson.M{"created_at": bson.M{"$lte": cutoff}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	var docs []holdDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, op)
	}

	out := make([]domain.Hold, len(docs))
	for i, d := range docs {
		out[i] = fromDoc(d)
	}
	return out, nil
}

func toDoc(h domain.Hold) holdDoc {
	return holdDoc{
		ID:             h.ID,
		Customer:       h.Customer,
		RequestedCount: h.RequestedCount,
		Seats:          h.Seats,
		Status:         string(h.Status),
		StatusDetail:   h.StatusDetail,
		CreatedAt:      h.CreatedAt,
	}
}

func fromDoc(d holdDoc) domain.Hold {
	return domain.Hold{
		ID:             d.ID,
		Customer:       d.Customer,
		RequestedCount: d.RequestedCount,
		Seats:          d.Seats,
		Status:         domain.HoldStatus(d.Status),
		StatusDetail:   d.StatusDetail,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}
