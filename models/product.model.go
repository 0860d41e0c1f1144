package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductImage references an uploaded image
type ProductImage struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// Product represents a catalog entry
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Category    string             `bson:"category" json:"category"`
	Brand       string             `bson:"brand" json:"brand"`
	Quantity    int                `bson:"quantity" json:"quantity"` // units in stock
	Sold        int                `bson:"sold" json:"sold"`
	Images      []ProductImage     `bson:"images" json:"images"`
}

// Validate checks the fields every consumer of a product relies on.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("product title is required")
	case p.Price < 0:
		return fmt.Errorf("product price must be non-negative")
	case p.Quantity < 0:
		return fmt.Errorf("product quantity must be non-negative")
	case p.Sold < 0:
		return fmt.Errorf("product sold count must be non-negative")
	}
	for i, img := range p.Images {
		if strings.TrimSpace(img.URL) == "" {
			return fmt.Errorf("product image %d has no url", i)
		}
	}
	return nil
}

// BannerImage returns the first image, or a zero value when there is none.
func (p Product) BannerImage() ProductImage {
	if len(p.Images) == 0 {
		return ProductImage{}
	}
	return p.Images[0]
}

// Ref returns the read-only view the cart works with.
func (p Product) Ref() ProductRef {
	return ProductRef{
		ID:    p.ID,
		Title: p.Title,
		Price: p.Price,
		Stock: p.Quantity,
		Image: p.BannerImage().URL,
	}
}

// ProductRef is what the cart needs to know about a product.
type ProductRef struct {
	ID    primitive.ObjectID `json:"id"`
	Title string             `json:"title"`
	Price float64            `json:"price"`
	Stock int                `json:"stock"`
	Image string             `json:"image,omitempty"`
}

// Category groups products sharing a category name
type Category struct {
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}
