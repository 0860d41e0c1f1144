package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"flipzone/models"
)

// MongoProductRepository reads and writes the products collection
type MongoProductRepository struct {
	Collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{Collection: db.Collection(ProductCollection)}
}

func (r *MongoProductRepository) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var p models.Product
	if err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Product{}, translate(err)
	}
	return p, nil
}

func (r *MongoProductRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *MongoProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoProductRepository) find(ctx context.Context, filter interface{}) ([]models.Product, error) {
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *MongoProductRepository) Insert(ctx context.Context, p models.Product) (models.Product, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := r.Collection.InsertOne(ctx, p); err != nil {
		return models.Product{}, translate(err)
	}
	return p, nil
}

func (r *MongoProductRepository) Update(ctx context.Context, p models.Product) error {
	fields := bson.M{
		"title":       p.Title,
		"description": p.Description,
		"price":       p.Price,
		"category":    p.Category,
		"brand":       p.Brand,
		"quantity":    p.Quantity,
		"sold":        p.Sold,
		"images":      p.Images,
	}
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": fields})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProductRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
