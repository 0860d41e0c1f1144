package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/models"
)

type pairKey struct {
	user    primitive.ObjectID
	product primitive.ObjectID
}

// MemoryCartRepository is a CartRepository kept in process memory. Every operation takes
// the repository lock, so the conditional updates are atomic like their Mongo counterparts.
type MemoryCartRepository struct {
	mu      sync.RWMutex
	records map[pairKey]models.CartRecord
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{records: make(map[pairKey]models.CartRecord)}
}

func (r *MemoryCartRepository) Find(ctx context.Context, userID, productID primitive.ObjectID) (models.CartRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CartRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[pairKey{userID, productID}]
	if !ok {
		return models.CartRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryCartRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.CartRecord{}
	for k, rec := range r.records {
		if k.user == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryCartRepository) Insert(ctx context.Context, rec models.CartRecord) (models.CartRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CartRecord{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{rec.UserID, rec.ProductID}
	if _, exists := r.records[key]; exists {
		return models.CartRecord{}, fmt.Errorf("%w: user_product_unique", ErrDuplicate)
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	r.records[key] = rec
	return rec, nil
}

func (r *MemoryCartRepository) IncrementBelow(ctx context.Context, userID, productID primitive.ObjectID, limit int) (models.CartRecord, bool, error) {
	return r.step(ctx, userID, productID, 1, func(q int) bool { return q < limit })
}

func (r *MemoryCartRepository) DecrementAbove(ctx context.Context, userID, productID primitive.ObjectID, floor int) (models.CartRecord, bool, error) {
	return r.step(ctx, userID, productID, -1, func(q int) bool { return q > floor })
}

func (r *MemoryCartRepository) step(ctx context.Context, userID, productID primitive.ObjectID, delta int, guard func(int) bool) (models.CartRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CartRecord{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID, productID}
	rec, ok := r.records[key]
	if !ok || !guard(rec.Quantity) {
		return models.CartRecord{}, false, nil
	}
	rec.Quantity += delta
	rec.UpdatedAt = time.Now().UTC()
	r.records[key] = rec
	return rec, true, nil
}

func (r *MemoryCartRepository) DeleteAt(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID, productID}
	rec, ok := r.records[key]
	if !ok || rec.Quantity != quantity {
		return false, nil
	}
	delete(r.records, key)
	return true, nil
}

func (r *MemoryCartRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k := range r.records {
		if k.user == userID {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

// MemoryProductRepository is a ProductRepository kept in process memory.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]models.Product
	order    []primitive.ObjectID
}

func NewMemoryProductRepository(seed ...models.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[primitive.ObjectID]models.Product)}
	for _, p := range seed {
		_, _ = r.Insert(context.Background(), p)
	}
	return r
}

func (r *MemoryProductRepository) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryProductRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryProductRepository) List(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Product, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.products[id])
	}
	return out, nil
}

func (r *MemoryProductRepository) Insert(ctx context.Context, p models.Product) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, exists := r.products[p.ID]; exists {
		return models.Product{}, fmt.Errorf("%w: _id", ErrDuplicate)
	}
	r.products[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, nil
}

func (r *MemoryProductRepository) Update(ctx context.Context, p models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[p.ID]; !ok {
		return ErrNotFound
	}
	r.products[p.ID] = p
	return nil
}

func (r *MemoryProductRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.products, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryUserRepository is a UserRepository kept in process memory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[primitive.ObjectID]models.User
	byEmail map[string]primitive.ObjectID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[primitive.ObjectID]models.User),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) Insert(ctx context.Context, u models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if _, exists := r.byEmail[u.Email]; exists {
		return models.User{}, fmt.Errorf("%w: email_unique", ErrDuplicate)
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}
