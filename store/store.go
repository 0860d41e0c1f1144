// Package store holds the persistence collaborators of the storefront: a MongoDB
// implementation used in production and an in-memory one for development and tests.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/models"
)

var (
	// ErrNotFound is returned when no document matches the filter.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate key")
)

// CartRepository persists CartRecords. Conditional operations report false when their
// guard did not match instead of failing, so callers can re-read and decide.
type CartRepository interface {
	Find(ctx context.Context, userID, productID primitive.ObjectID) (models.CartRecord, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartRecord, error)
	// Insert fails with ErrDuplicate when a record for the pair already exists.
	Insert(ctx context.Context, rec models.CartRecord) (models.CartRecord, error)
	// IncrementBelow adds one to quantity when it is below limit.
	IncrementBelow(ctx context.Context, userID, productID primitive.ObjectID, limit int) (models.CartRecord, bool, error)
	// DecrementAbove subtracts one from quantity when it is above floor.
	DecrementAbove(ctx context.Context, userID, productID primitive.ObjectID, floor int) (models.CartRecord, bool, error)
	// DeleteAt removes the record when its quantity equals quantity.
	DeleteAt(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (bool, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// ProductRepository persists catalog products
type ProductRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Insert(ctx context.Context, p models.Product) (models.Product, error)
	Update(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UserRepository persists users. Emails are unique.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Insert(ctx context.Context, u models.User) (models.User, error)
}
