package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"flipzone/models"
)

// MongoUserRepository reads and writes the users collection
type MongoUserRepository struct {
	Collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{Collection: db.Collection(UserCollection)}
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := r.Collection.FindOne(ctx, filter).Decode(&u); err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (r *MongoUserRepository) Insert(ctx context.Context, u models.User) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.Collection.InsertOne(ctx, u); err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
