// Package history holds the permanent ledger of every candidate ever sent to
// the CRM. The unique index on candidate_id is the cross-batch dedup signal:
// a lead whose candidate id appears here is a duplicate no matter which
// product or batch it came from.
package history

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Entry struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	CandidateID string    `bson:"candidate_id" json:"candidate_id"`
	ProductID   string    `bson:"product_id" json:"product_id"`
	BatchID     string    `bson:"batch_id" json:"batch_id"`
	SentAt      time.Time `bson:"sent_at" json:"sent_at"`
}

type Repository interface {
	Exists(ctx context.Context, candidateID string) (bool, error)
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit, offset int64) ([]Entry, int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Exists(ctx context.Context, candidateID string) (bool, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"candidate_id": candidateID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert appends a ledger entry. Callers racing on the same candidate id hit
// the unique index; mongo.IsDuplicateKeyError tells them apart from real
// failures.
func (r *MongoRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.col.InsertOne(ctx, entry)
	return err
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int64) ([]Entry, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := make([]Entry, 0)
	for cursor.Next(ctx) {
		var entry Entry
		if err := cursor.Decode(&entry); err != nil {
			return nil, 0, err
		}
		items = append(items, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
