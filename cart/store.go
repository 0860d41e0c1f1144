// Package cart implements the per-user shopping cart: add, remove, listing and totals.
//
// Mutations on one (user, product) pair are serialized inside the process and guarded by
// conditional writes in storage, so concurrent requests from several instances never lose
// an update or push a line past MaxCartQuantity.
package cart

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

// maxAttempts bounds how often a mutation is re-evaluated after losing a race.
const maxAttempts = 5

// Catalog is what the cart needs from the product catalog.
type Catalog interface {
	Lookup(ctx context.Context, id primitive.ObjectID) (models.ProductRef, error)
	LookupMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ProductRef, error)
}

// Store is the cart service
type Store struct {
	repo    store.CartRepository
	catalog Catalog
	timeout time.Duration
	logger  *log.Entry
	locks   *keyLock
	now     func() time.Time
}

// NewStore creates a cart store. Every storage round trip is bounded by timeout.
func NewStore(repo store.CartRepository, catalog Catalog, timeout time.Duration, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Store{
		repo:    repo,
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
		locks:   newKeyLock(),
		now:     time.Now,
	}
}

// AddItem adds one unit of a product to the user's cart.
func (s *Store) AddItem(ctx context.Context, userID, productID primitive.ObjectID) (Outcome, error) {
	if err := checkPair(userID, productID); err != nil {
		return "", err
	}
	unlock := s.locks.lock(pairKey(userID, productID))
	defer unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := s.find(ctx, userID, productID)
		if errors.Is(err, store.ErrNotFound) {
			outcome, err := s.insertNew(ctx, userID, productID)
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return outcome, err
		}
		if err != nil {
			return "", err
		}

		if rec.Quantity >= models.MaxCartQuantity {
			return OutcomeLimitExceeded, nil
		}
		ok, err := s.increment(ctx, userID, productID)
		if err != nil {
			return "", err
		}
		if ok {
			return OutcomeUpdated, nil
		}
	}
	return "", s.contended("add", userID, productID)
}

// RemoveItem takes one unit of a product out of the user's cart. The line is deleted
// when its last unit goes.
func (s *Store) RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (Outcome, error) {
	if err := checkPair(userID, productID); err != nil {
		return "", err
	}
	unlock := s.locks.lock(pairKey(userID, productID))
	defer unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := s.find(ctx, userID, productID)
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.NotFoundf("Product not found in cart")
		}
		if err != nil {
			return "", err
		}

		if rec.Quantity > 1 {
			ok, err := s.decrement(ctx, userID, productID)
			if err != nil {
				return "", err
			}
			if ok {
				return OutcomeDecreased, nil
			}
			continue
		}

		ok, err := s.deleteAt(ctx, userID, productID, rec.Quantity)
		if err != nil {
			return "", err
		}
		if ok {
			return OutcomeRemoved, nil
		}
	}
	return "", s.contended("remove", userID, productID)
}

// ListCart returns the user's cart records, oldest first. An anonymous caller has an
// empty cart.
func (s *Store) ListCart(ctx context.Context, userID primitive.ObjectID) ([]models.CartRecord, error) {
	if userID.IsZero() {
		return []models.CartRecord{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.unavailable(err)
	}
	if records == nil {
		records = []models.CartRecord{}
	}
	return records, nil
}

// Lines is ListCart joined with the current product title and image. The price stays
// the one captured in the record. Lines for products that left the catalog are kept.
func (s *Store) Lines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	records, err := s.ListCart(ctx, userID)
	if err != nil || len(records) == 0 {
		return []models.CartLine{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ProductID)
	}
	refs, err := s.catalog.LookupMany(ctx, ids)
	if err != nil {
		return nil, catalogError(err)
	}

	lines := make([]models.CartLine, 0, len(records))
	for _, rec := range records {
		line := models.CartLine{CartRecord: rec}
		if ref, ok := refs[rec.ProductID]; ok {
			line.Title = ref.Title
			line.Image = ref.Image
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ComputeTotal sums quantity times captured price over the user's cart.
func (s *Store) ComputeTotal(ctx context.Context, userID primitive.ObjectID) (float64, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return summary.TotalPrice, nil
}

// Summary aggregates the user's cart. It is recomputed on every call.
func (s *Store) Summary(ctx context.Context, userID primitive.ObjectID) (models.CartSummary, error) {
	records, err := s.ListCart(ctx, userID)
	if err != nil {
		return models.CartSummary{}, err
	}
	var summary models.CartSummary
	for _, rec := range records {
		summary.DistinctProducts++
		summary.TotalQuantity += rec.Quantity
		summary.TotalPrice += rec.Subtotal()
	}
	return summary, nil
}

// CountForProduct returns how many units of a product the user holds. Anonymous
// callers and unknown pairs get 0.
func (s *Store) CountForProduct(ctx context.Context, userID, productID primitive.ObjectID) (int, error) {
	if userID.IsZero() || productID.IsZero() {
		return 0, nil
	}
	rec, err := s.find(ctx, userID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Quantity, nil
}

// Clear empties the user's cart and returns the number of removed lines.
func (s *Store) Clear(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if userID.IsZero() {
		return 0, apperr.Unauthorized("")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, s.unavailable(err)
	}
	return n, nil
}

func (s *Store) insertNew(ctx context.Context, userID, productID primitive.ObjectID) (Outcome, error) {
	product, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return "", catalogError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	_, err = s.repo.Insert(ctx, models.CartRecord{
		UserID:    userID,
		ProductID: productID,
		Quantity:  1,
		Price:     product.Price,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		s.logger.WithField("product_id", productID.Hex()).Debug("lost insert race, retrying as increment")
		return "", err
	}
	if err != nil {
		return "", s.unavailable(err)
	}
	return OutcomeAdded, nil
}

func (s *Store) find(ctx context.Context, userID, productID primitive.ObjectID) (models.CartRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.repo.Find(ctx, userID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return models.CartRecord{}, err
	}
	if err != nil {
		return models.CartRecord{}, s.unavailable(err)
	}
	return rec, nil
}

func (s *Store) increment(ctx context.Context, userID, productID primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, ok, err := s.repo.IncrementBelow(ctx, userID, productID, models.MaxCartQuantity)
	if err != nil {
		return false, s.unavailable(err)
	}
	return ok, nil
}

func (s *Store) decrement(ctx context.Context, userID, productID primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, ok, err := s.repo.DecrementAbove(ctx, userID, productID, 1)
	if err != nil {
		return false, s.unavailable(err)
	}
	return ok, nil
}

func (s *Store) deleteAt(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.repo.DeleteAt(ctx, userID, productID, quantity)
	if err != nil {
		return false, s.unavailable(err)
	}
	return ok, nil
}

func (s *Store) unavailable(err error) error {
	s.logger.WithError(err).Error("cart storage call failed")
	return apperr.Unavailable(err)
}

func (s *Store) contended(op string, userID, productID primitive.ObjectID) error {
	s.logger.WithFields(log.Fields{
		"op":         op,
		"user_id":    userID.Hex(),
		"product_id": productID.Hex(),
	}).Warn("cart mutation kept losing races")
	return apperr.New(apperr.Unknown, "cart line changed concurrently")
}

func checkPair(userID, productID primitive.ObjectID) error {
	if userID.IsZero() {
		return apperr.Unauthorized("")
	}
	if productID.IsZero() {
		return apperr.Invalid("Invalid product ID")
	}
	return nil
}

// catalogError keeps classified catalog failures and treats anything else as the
// catalog's storage being unreachable.
func catalogError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Unavailable(err)
}

func pairKey(userID, productID primitive.ObjectID) string {
	return userID.Hex() + ":" + productID.Hex()
}
