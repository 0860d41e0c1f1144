package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flipzone/models"
)

// MongoCartRepository stores one document per cart line in the cartitems collection.
type MongoCartRepository struct {
	Collection *mongo.Collection
}

// NewMongoCartRepository creates a repository over db.cartitems
func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{Collection: db.Collection(CartCollection)}
}

func pairFilter(userID, productID primitive.ObjectID) bson.D {
	return bson.D{{Key: "user_id", Value: userID}, {Key: "product_id", Value: productID}}
}

func (r *MongoCartRepository) Find(ctx context.Context, userID, productID primitive.ObjectID) (models.CartRecord, error) {
	var rec models.CartRecord
	err := r.Collection.FindOne(ctx, pairFilter(userID, productID)).Decode(&rec)
	if err != nil {
		return models.CartRecord{}, translate(err)
	}
	return rec, nil
}

func (r *MongoCartRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.Collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	records := []models.CartRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, translate(err)
	}
	return records, nil
}

func (r *MongoCartRepository) Insert(ctx context.Context, rec models.CartRecord) (models.CartRecord, error) {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	if _, err := r.Collection.InsertOne(ctx, rec); err != nil {
		return models.CartRecord{}, translate(err)
	}
	return rec, nil
}

func (r *MongoCartRepository) IncrementBelow(ctx context.Context, userID, productID primitive.ObjectID, limit int) (models.CartRecord, bool, error) {
	filter := append(pairFilter(userID, productID), bson.E{Key: "quantity", Value: bson.M{"$lt": limit}})
	return r.step(ctx, filter, 1)
}

func (r *MongoCartRepository) DecrementAbove(ctx context.Context, userID, productID primitive.ObjectID, floor int) (models.CartRecord, bool, error) {
	filter := append(pairFilter(userID, productID), bson.E{Key: "quantity", Value: bson.M{"$gt": floor}})
	return r.step(ctx, filter, -1)
}

// step applies an atomic $inc guarded by filter and returns the updated document.
func (r *MongoCartRepository) step(ctx context.Context, filter bson.D, delta int) (models.CartRecord, bool, error) {
	update := bson.M{
		"$inc": bson.M{"quantity": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.CartRecord
	err := r.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CartRecord{}, false, nil
	}
	if err != nil {
		return models.CartRecord{}, false, translate(err)
	}
	return rec, true, nil
}

func (r *MongoCartRepository) DeleteAt(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (bool, error) {
	filter := append(pairFilter(userID, productID), bson.E{Key: "quantity", Value: quantity})
	res, err := r.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, translate(err)
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoCartRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.Collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}
