package agents

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, agent Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	GetManyByID(ctx context.Context, ids []string) ([]Agent, error)
	List(ctx context.Context, onlyActive bool) ([]Agent, error)
	Update(ctx context.Context, id string, set bson.M) (Agent, error)
	Delete(ctx context.Context, id string) (bool, error)
	CRMIDInUse(ctx context.Context, crmID int, excludeID string) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, agent Agent) error {
	_, err := r.col.InsertOne(ctx, agent)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Agent, error) {
	var agent Agent
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// GetManyByID preserves the order of ids; missing ids are skipped.
func (r *MongoRepository) GetManyByID(ctx context.Context, ids []string) ([]Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	byID := make(map[string]Agent, len(ids))
	for cursor.Next(ctx) {
		var agent Agent
		if err := cursor.Decode(&agent); err != nil {
			return nil, err
		}
		byID[agent.ID] = agent
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	ordered := make([]Agent, 0, len(ids))
	for _, id := range ids {
		if agent, ok := byID[id]; ok {
			ordered = append(ordered, agent)
		}
	}
	return ordered, nil
}

func (r *MongoRepository) List(ctx context.Context, onlyActive bool) ([]Agent, error) {
	query := bson.M{}
	if onlyActive {
		query["active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Agent, 0)
	for cursor.Next(ctx) {
		var agent Agent
		if err := cursor.Decode(&agent); err != nil {
			return nil, err
		}
		items = append(items, agent)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Agent, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": set}

	var updated Agent
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return Agent{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) CRMIDInUse(ctx context.Context, crmID int, excludeID string) (bool, error) {
	query := bson.M{"crm_id": crmID}
	if excludeID != "" {
		query["_id"] = bson.M{"$ne": excludeID}
	}
	count, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
