package leads

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, lead Lead) error
	FindByBatchAndStatus(ctx context.Context, batchID string, status Status) ([]Lead, error)
	ListByBatch(ctx context.Context, batchID, status string, limit, offset int64) ([]Lead, int64, error)
	MarkClassified(ctx context.Context, id string, status Status, reason string) error
	MarkSent(ctx context.Context, id, crmLeadID, agentID string, sentAt time.Time) error
	MarkSendError(ctx context.Context, id, reason string) error
	CountByStatus(ctx context.Context, batchID string) (map[Status]int64, error)
}

type BatchRepository interface {
	Create(ctx context.Context, batch Batch) error
	GetByID(ctx context.Context, id string) (Batch, error)
	SetProcessed(ctx context.Context, id string, valid, duplicates, filtered int) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, lead Lead) error {
	_, err := r.col.InsertOne(ctx, lead)
	return err
}

func (r *MongoRepository) FindByBatchAndStatus(ctx context.Context, batchID string, status Status) ([]Lead, error) {
	cursor, err := r.col.Find(ctx, bson.M{"batch_id": batchID, "status": status})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Lead, 0)
	for cursor.Next(ctx) {
		var lead Lead
		if err := cursor.Decode(&lead); err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) ListByBatch(ctx context.Context, batchID, status string, limit, offset int64) ([]Lead, int64, error) {
	query := bson.M{"batch_id": batchID}
	if status != "" {
		query["status"] = status
	}

	opts := options.Find().SetLimit(limit).SetSkip(offset)
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := make([]Lead, 0)
	for cursor.Next(ctx) {
		var lead Lead
		if err := cursor.Decode(&lead); err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkClassified moves a pending lead into its terminal pre-send state. The
// filter on the current status makes re-runs unable to regress a lead.
func (r *MongoRepository) MarkClassified(ctx context.Context, id string, status Status, reason string) error {
	set := bson.M{"status": status}
	if reason != "" {
		set["filter_reason"] = reason
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusPending},
		bson.M{"$set": set},
	)
	return err
}

func (r *MongoRepository) MarkSent(ctx context.Context, id, crmLeadID, agentID string, sentAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusProcessed},
		bson.M{"$set": bson.M{
			"status":      StatusSent,
			"crm_lead_id": crmLeadID,
			"agent_id":    agentID,
			"sent_at":     sentAt,
		}},
	)
	return err
}

func (r *MongoRepository) MarkSendError(ctx context.Context, id, reason string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusProcessed},
		bson.M{"$set": bson.M{
			"status":        StatusError,
			"filter_reason": reason,
		}},
	)
	return err
}

func (r *MongoRepository) CountByStatus(ctx context.Context, batchID string) (map[Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"batch_id": batchID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[Status]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status Status `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

type MongoBatchRepository struct {
	col *mongo.Collection
}

func NewBatchRepository(col *mongo.Collection) *MongoBatchRepository {
	return &MongoBatchRepository{col: col}
}

func (r *MongoBatchRepository) Create(ctx context.Context, batch Batch) error {
	_, err := r.col.InsertOne(ctx, batch)
	return err
}

func (r *MongoBatchRepository) GetByID(ctx context.Context, id string) (Batch, error) {
	var batch Batch
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&batch); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// SetProcessed overwrites the counters wholesale; they describe the latest
// full process run, not an accumulation across runs.
func (r *MongoBatchRepository) SetProcessed(ctx context.Context, id string, valid, duplicates, filtered int) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":          BatchProcessed,
			"valid_count":     valid,
			"duplicate_count": duplicates,
			"filtered_count":  filtered,
		}},
	)
	return err
}
