package repositories_test

import (
	"context"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"productapi/internal/models"
	"productapi/internal/repositories"
)

func newGORMRepository(t *testing.T) repositories.ProductRepository {
	t.Helper()
	return repositories.NewGORMProductRepository(openSQLite(t), 5*time.Second)
}

// openSQLite opens a private in-memory SQLite database for t.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + url.PathEscape(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// newMongoRepository needs a running server; set MONGODB_TEST_URI to enable it.
func newMongoRepository(t *testing.T) repositories.ProductRepository {
	t.Helper()

	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	collection := client.Database("productapi_test").Collection(primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = collection.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return repositories.NewMongoProductRepository(collection, 5*time.Second)
}

var stores = []struct {
	name string
	open func(t *testing.T) repositories.ProductRepository
}{
	{"memory", func(*testing.T) repositories.ProductRepository { return repositories.NewInMemoryProductRepository() }},
	{"gorm", newGORMRepository},
	{"mongo", newMongoRepository},
}

func forEachStore(t *testing.T, unique bool, fn func(t *testing.T, repo repositories.ProductRepository)) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			repo := s.open(t)
			require.NoError(t, repo.EnsureIndexes(context.Background(), unique))
			fn(t, repo)
		})
	}
}

func newProduct(name string) *models.Product {
	return &models.Product{
		Name:        name,
		Description: "desc",
		Price:       9.5,
		Category:    "Books",
		Quantity:    4,
	}
}

func TestProductRepository_CreateAndFind(t *testing.T) {
	forEachStore(t, false, func(t *testing.T, repo repositories.ProductRepository) {
		ctx := context.Background()

		p := newProduct("Go in Action")
		require.NoError(t, repo.Create(ctx, p))
		assert.False(t, p.ID.IsZero())
		assert.False(t, p.CreatedAt.IsZero())
		assert.Equal(t, p.CreatedAt, p.UpdatedAt)

		byID, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, p.Name, byID.Name)
		assert.Equal(t, p.Price, byID.Price)
		assert.Equal(t, p.Quantity, byID.Quantity)
		assert.True(t, p.CreatedAt.Equal(byID.CreatedAt))

		byName, err := repo.FindByName(ctx, "Go in Action")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, p.ID, byName.ID)

		missing, err := repo.FindByName(ctx, "go in action")
		require.NoError(t, err)
		assert.Nil(t, missing)

		missing, err = repo.FindByID(ctx, primitive.NewObjectID())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestProductRepository_DuplicateNamesActOnOldest(t *testing.T) {
	forEachStore(t, false, func(t *testing.T, repo repositories.ProductRepository) {
		ctx := context.Background()

		first := newProduct("Dup")
		second := newProduct("Dup")
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))

		found, err := repo.FindByName(ctx, "Dup")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)

		updated, err := repo.UpdateByName(ctx, "Dup", models.ProductUpdate{Quantity: ptr(1)})
		require.NoError(t, err)
		assert.Equal(t, first.ID, updated.ID)
		assert.Equal(t, 1, updated.Quantity)

		deleted, err := repo.DeleteByName(ctx, "Dup")
		require.NoError(t, err)
		assert.Equal(t, first.ID, deleted.ID)

		found, err = repo.FindByName(ctx, "Dup")
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)
		assert.Equal(t, 4, found.Quantity)
	})
}

func TestProductRepository_Update(t *testing.T) {
	forEachStore(t, false, func(t *testing.T, repo repositories.ProductRepository) {
		ctx := context.Background()

		p := newProduct("Clean Code")
		require.NoError(t, repo.Create(ctx, p))

		updated, err := repo.UpdateByID(ctx, p.ID, models.ProductUpdate{
			Name:        ptr("Clean Architecture"),
			Description: ptr(""),
			Price:       ptr(20.0),
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "Clean Architecture", updated.Name)
		assert.Empty(t, updated.Description)
		assert.Equal(t, 20.0, updated.Price)
		assert.Equal(t, "Books", updated.Category)
		assert.Equal(t, 4, updated.Quantity)
		assert.True(t, p.CreatedAt.Equal(updated.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(p.UpdatedAt))

		unchanged, err := repo.UpdateByID(ctx, p.ID, models.ProductUpdate{})
		require.NoError(t, err)
		assert.Equal(t, updated.Name, unchanged.Name)

		missing, err := repo.UpdateByID(ctx, primitive.NewObjectID(), models.ProductUpdate{Price: ptr(1.0)})
		require.NoError(t, err)
		assert.Nil(t, missing)

		missing, err = repo.UpdateByName(ctx, "Clean Code", models.ProductUpdate{Price: ptr(1.0)})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestProductRepository_Delete(t *testing.T) {
	forEachStore(t, false, func(t *testing.T, repo repositories.ProductRepository) {
		ctx := context.Background()

		p := newProduct("Refactoring")
		require.NoError(t, repo.Create(ctx, p))

		deleted, err := repo.DeleteByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, p.ID, deleted.ID)

		again, err := repo.DeleteByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, again)

		byName, err := repo.DeleteByName(ctx, "Refactoring")
		require.NoError(t, err)
		assert.Nil(t, byName)
	})
}

func TestProductRepository_UniqueNames(t *testing.T) {
	forEachStore(t, true, func(t *testing.T, repo repositories.ProductRepository) {
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, newProduct("SICP")))
		other := newProduct("TAOCP")
		require.NoError(t, repo.Create(ctx, other))

		err := repo.Create(ctx, newProduct("SICP"))
		assert.ErrorIs(t, err, repositories.ErrDuplicateKey)

		_, err = repo.UpdateByID(ctx, other.ID, models.ProductUpdate{Name: ptr("SICP")})
		assert.ErrorIs(t, err, repositories.ErrDuplicateKey)

		// Renaming a product to its own name is not a conflict.
		_, err = repo.UpdateByID(ctx, other.ID, models.ProductUpdate{Name: ptr("TAOCP")})
		assert.NoError(t, err)

		require.NoError(t, repo.EnsureIndexes(ctx, false))
		assert.NoError(t, repo.Create(ctx, newProduct("SICP")))
	})
}

func TestProductRepository_Ping(t *testing.T) {
	forEachStore(t, false, func(t *testing.T, repo repositories.ProductRepository) {
		assert.NoError(t, repo.Ping(context.Background()))
	})
}

func TestProductRepository_Unavailable(t *testing.T) {
	ctx := context.Background()
	for name, repo := range map[string]repositories.ProductRepository{
		"mongo": repositories.NewMongoProductRepository(nil, time.Second),
		"gorm":  repositories.NewGORMProductRepository(nil, time.Second),
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, repo.Create(ctx, newProduct("x")), repositories.ErrStoreUnavailable)
			assert.ErrorIs(t, repo.Ping(ctx), repositories.ErrStoreUnavailable)
			assert.ErrorIs(t, repo.EnsureIndexes(ctx, false), repositories.ErrStoreUnavailable)

			_, err := repo.FindByName(ctx, "x")
			assert.ErrorIs(t, err, repositories.ErrStoreUnavailable)
			_, err = repo.UpdateByID(ctx, primitive.NewObjectID(), models.ProductUpdate{Price: ptr(1.0)})
			assert.ErrorIs(t, err, repositories.ErrStoreUnavailable)
			_, err = repo.DeleteByName(ctx, "x")
			assert.ErrorIs(t, err, repositories.ErrStoreUnavailable)
		})
	}
}

func TestInMemoryProductRepository_Concurrent(t *testing.T) {
	repo := repositories.NewInMemoryProductRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := newProduct("Concurrent")
			assert.NoError(t, repo.Create(ctx, p))
			_, err := repo.UpdateByID(ctx, p.ID, models.ProductUpdate{Quantity: ptr(7)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		deleted, err := repo.DeleteByName(ctx, "Concurrent")
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, 7, deleted.Quantity)
	}
	last, err := repo.FindByName(ctx, "Concurrent")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func ptr[T any](v T) *T {
	return &v
}

func TestGORMProductRepository_Timeout(t *testing.T) {
	repo := newGORMRepository(t)
	require.NoError(t, repo.EnsureIndexes(context.Background(), false))

	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	assert.Error(t, repo.Create(expired, newProduct("Late")))
	assert.Error(t, repo.Ping(expired))

	_, err := repo.FindByName(expired, "Late")
	assert.Error(t, err)
	_, err = repo.UpdateByID(expired, primitive.NewObjectID(), models.ProductUpdate{Price: ptr(1.0)})
	assert.Error(t, err)
	_, err = repo.DeleteByName(expired, "Late")
	assert.Error(t, err)

	found, err := repo.FindByName(context.Background(), "Late")
	require.NoError(t, err)
	assert.Nil(t, found)
}
