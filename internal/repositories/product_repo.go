package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"productapi/internal/models"
)

var (
	// ErrDuplicateKey is returned when the store rejects a write because of a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStoreUnavailable is returned by a repository whose connection was never established.
	ErrStoreUnavailable = errors.New("database connection is not established")
)

// ProductRepository defines the interface for product data access.
//
// Lookups return (nil, nil) when no product matches. When several products share a
// name, the by-name methods act on the oldest one.
type ProductRepository interface {
	FindByName(ctx context.Context, name string) (*models.Product, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	UpdateByName(ctx context.Context, name string, update models.ProductUpdate) (*models.Product, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error)
	DeleteByName(ctx context.Context, name string) (*models.Product, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)

	// EnsureIndexes creates the name index, unique when unique is set.
	EnsureIndexes(ctx context.Context, unique bool) error
	Ping(ctx context.Context) error
}
