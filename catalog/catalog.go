// Package catalog resolves product identity, price and stock for the rest of the
// storefront and owns the admin product writes.
package catalog

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/apperr"
	"flipzone/models"
	"flipzone/store"
)

// Service is the catalog collaborator
type Service struct {
	repo    store.ProductRepository
	timeout time.Duration
	logger  *log.Entry
}

// NewService creates a catalog service. Each repository call is bounded by timeout.
func NewService(repo store.ProductRepository, timeout time.Duration, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{repo: repo, timeout: timeout, logger: logger}
}

// Lookup returns the cart's view of a product.
func (s *Service) Lookup(ctx context.Context, id primitive.ObjectID) (models.ProductRef, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.ProductRef{}, err
	}
	return p.Ref(), nil
}

// LookupMany resolves several products at once. Unknown or invalid ids are absent from
// the result map.
func (s *Service) LookupMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ProductRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	refs := make(map[primitive.ObjectID]models.ProductRef, len(products))
	for _, p := range s.valid(products) {
		refs[p.ID] = p.Ref()
	}
	return refs, nil
}

// Get returns a single validated product
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	if id.IsZero() {
		return models.Product{}, apperr.Invalid("Invalid product ID")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Product{}, apperr.NotFoundf("Product not found")
	}
	if err != nil {
		return models.Product{}, apperr.Unavailable(err)
	}
	if err := p.Validate(); err != nil {
		s.logger.WithError(err).WithField("product_id", id.Hex()).Warn("stored product failed validation")
		return models.Product{}, apperr.NotFoundf("Product not found")
	}
	return p, nil
}

// List returns every product that passes validation.
func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	return s.valid(products), nil
}

// Categorized groups products by category, keeping the order in which categories first
// appear in the listing.
func (s *Service) Categorized(ctx context.Context) ([]models.Category, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByCategory(products), nil
}

// GroupByCategory is the pure part of Categorized
func GroupByCategory(products []models.Product) []models.Category {
	categories := []models.Category{}
	index := make(map[string]int)
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(categories)
			index[p.Category] = i
			categories = append(categories, models.Category{Name: p.Category, Products: []models.Product{}})
		}
		categories[i].Products = append(categories[i].Products, p)
	}
	return categories
}

// Create validates and inserts a product
func (s *Service) Create(ctx context.Context, p models.Product) (models.Product, error) {
	if err := p.Validate(); err != nil {
		return models.Product{}, apperr.Invalid(err.Error())
	}
	if p.Images == nil {
		p.Images = []models.ProductImage{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.repo.Insert(ctx, p)
	if errors.Is(err, store.ErrDuplicate) {
		return models.Product{}, apperr.New(apperr.Conflict, "Product already exists")
	}
	if err != nil {
		return models.Product{}, apperr.Unavailable(err)
	}
	s.logger.WithField("product_id", created.ID.Hex()).Info("product created")
	return created, nil
}

// Update replaces a product. Cart lines keep the price captured when they were created.
func (s *Service) Update(ctx context.Context, p models.Product) (models.Product, error) {
	if p.ID.IsZero() {
		return models.Product{}, apperr.Invalid("Invalid product ID")
	}
	if err := p.Validate(); err != nil {
		return models.Product{}, apperr.Invalid(err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.repo.Update(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return models.Product{}, apperr.NotFoundf("Product not found")
	}
	if err != nil {
		return models.Product{}, apperr.Unavailable(err)
	}
	return p, nil
}

// Delete removes a product
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if id.IsZero() {
		return apperr.Invalid("Invalid product ID")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf("Product not found")
	}
	if err != nil {
		return apperr.Unavailable(err)
	}
	return nil
}

func (s *Service) valid(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			s.logger.WithError(err).WithField("product_id", p.ID.Hex()).Warn("skipping invalid product")
			continue
		}
		out = append(out, p)
	}
	return out
}
