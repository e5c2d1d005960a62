package repositories

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"productapi/internal/models"
)

// InMemoryProductRepository is an in-memory implementation of ProductRepository.
type InMemoryProductRepository struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]models.Product
	order    []primitive.ObjectID // insertion order, oldest first
	unique   bool
}

// NewInMemoryProductRepository creates a new instance of InMemoryProductRepository.
func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: make(map[primitive.ObjectID]models.Product),
	}
}

// FindByName returns the oldest product with the given name.
func (r *InMemoryProductRepository) FindByName(_ context.Context, name string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.firstByName(name)
	if !ok {
		return nil, nil
	}
	product := r.products[id]
	return &product, nil
}

// FindByID returns the product with the given id.
func (r *InMemoryProductRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &product, nil
}

// Create stores a new product and assigns its id and timestamps.
func (r *InMemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unique {
		if _, taken := r.firstByName(product.Name); taken {
			return ErrDuplicateKey
		}
	}

	now := time.Now().UTC()
	product.ID = primitive.NewObjectID()
	product.CreatedAt = now
	product.UpdatedAt = now

	r.products[product.ID] = *product
	r.order = append(r.order, product.ID)
	return nil
}

// UpdateByName applies update to the oldest product with the given name.
func (r *InMemoryProductRepository) UpdateByName(_ context.Context, name string, update models.ProductUpdate) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.firstByName(name)
	if !ok {
		return nil, nil
	}
	return r.update(id, update)
}

// UpdateByID applies update to the product with the given id.
func (r *InMemoryProductRepository) UpdateByID(_ context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return nil, nil
	}
	return r.update(id, update)
}

// DeleteByName removes the oldest product with the given name and returns it.
func (r *InMemoryProductRepository) DeleteByName(_ context.Context, name string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.firstByName(name)
	if !ok {
		return nil, nil
	}
	return r.delete(id), nil
}

// DeleteByID removes the product with the given id and returns it.
func (r *InMemoryProductRepository) DeleteByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return nil, nil
	}
	return r.delete(id), nil
}

// EnsureIndexes switches name uniqueness on or off for subsequent writes.
func (r *InMemoryProductRepository) EnsureIndexes(_ context.Context, unique bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unique = unique
	return nil
}

// Ping always succeeds.
func (r *InMemoryProductRepository) Ping(context.Context) error {
	return nil
}

// firstByName must be called with r.mu held.
func (r *InMemoryProductRepository) firstByName(name string) (primitive.ObjectID, bool) {
	for _, id := range r.order {
		if r.products[id].Name == name {
			return id, true
		}
	}
	return primitive.NilObjectID, false
}

// update must be called with r.mu held for writing.
func (r *InMemoryProductRepository) update(id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	product := r.products[id]
	if update.IsEmpty() {
		return &product, nil
	}

	if r.unique && update.Name != nil && *update.Name != product.Name {
		if _, taken := r.firstByName(*update.Name); taken {
			return nil, ErrDuplicateKey
		}
	}

	update.Apply(&product)
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return &product, nil
}

// delete must be called with r.mu held for writing.
func (r *InMemoryProductRepository) delete(id primitive.ObjectID) *models.Product {
	product := r.products[id]
	delete(r.products, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return &product
}
