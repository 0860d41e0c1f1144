package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/catalog"
	"flipzone/envelope"
	"flipzone/models"
)

// ProductController handles product-related requests
type ProductController struct {
	Catalog *catalog.Service
}

// NewProductController creates a new ProductController
func NewProductController(c *catalog.Service) *ProductController {
	return &ProductController{Catalog: c}
}

// GetProducts retrieves all products
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := pc.Catalog.List(r.Context())
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, products)
}

// GetCategories retrieves products grouped by category
func (pc *ProductController) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := pc.Catalog.Categorized(r.Context())
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, categories)
}

// GetProductByID retrieves a single product
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"], "Invalid product ID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	product, err := pc.Catalog.Get(r.Context(), id)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, product)
}

// CreateProduct adds a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		envelope.Error(w, err)
		return
	}
	product.ID = primitive.NilObjectID

	created, err := pc.Catalog.Create(r.Context(), product)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusCreated, created)
}

// UpdateProduct replaces an existing product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"], "Invalid product ID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		envelope.Error(w, err)
		return
	}
	product.ID = id

	updated, err := pc.Catalog.Update(r.Context(), product)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, updated)
}

// DeleteProduct removes a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"], "Invalid product ID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	if err := pc.Catalog.Delete(r.Context(), id); err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.Message{Status: "deleted", Message: "Product deleted"})
}
