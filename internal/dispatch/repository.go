package dispatch

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository interface {
	Create(ctx context.Context, run Run) error
	Finish(ctx context.Context, id string, success, errors int, finishedAt time.Time) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, run Run) error {
	_, err := r.col.InsertOne(ctx, run)
	return err
}

func (r *MongoRepository) Finish(ctx context.Context, id string, success, errors int, finishedAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"success_count": success,
			"error_count":   errors,
			"finished_at":   finishedAt,
			"status":        RunCompleted,
		}},
	)
	return err
}
