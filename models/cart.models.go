package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxCartQuantity is the per-line quantity cap. Reaching it is a normal outcome, not an error.
const MaxCartQuantity = 10

// CartRecord is one product line in one user's cart. There is at most one record per
// (UserID, ProductID) and Quantity stays within 1..MaxCartQuantity.
type CartRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     float64            `bson:"price" json:"price"` // unit price captured at first add
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Subtotal is quantity times the captured unit price.
func (r CartRecord) Subtotal() float64 {
	return float64(r.Quantity) * r.Price
}

// CartLine is a CartRecord joined with the product fields the storefront displays.
type CartLine struct {
	CartRecord `bson:",inline"`
	Title      string `bson:"title,omitempty" json:"title,omitempty"`
	Image      string `bson:"image,omitempty" json:"image,omitempty"`
}

// CartSummary aggregates a user's cart
type CartSummary struct {
	DistinctProducts int     `json:"distinct_products"`
	TotalQuantity    int     `json:"total_quantity"`
	TotalPrice       float64 `json:"total_price"`
}
