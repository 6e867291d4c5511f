package users

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	Insert(ctx context.Context, user User) error
	Count(ctx context.Context) (int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	var user User
	query := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := r.col.FindOne(ctx, query).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) Insert(ctx context.Context, user User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := r.col.InsertOne(ctx, user)
	return err
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}
