package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"productapi/internal/models"
)

const nameIndex = "name_1"

// oldestFirst makes by-name operations pick the earliest inserted match.
var oldestFirst = bson.D{{Key: "_id", Value: 1}}

// MongoProductRepository is a MongoDB implementation of ProductRepository.
type MongoProductRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoProductRepository creates a new instance of MongoProductRepository.
// A nil collection yields a repository that fails every call with ErrStoreUnavailable.
func NewMongoProductRepository(collection *mongo.Collection, timeout time.Duration) *MongoProductRepository {
	return &MongoProductRepository{
		collection: collection,
		timeout:    timeout,
	}
}

// FindByName retrieves the oldest product with the given name.
func (r *MongoProductRepository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	return r.findOne(ctx, bson.M{"name": name}, "find product by name")
}

// FindByID retrieves a single product by its id.
func (r *MongoProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find product by id")
}

// Create inserts a new product and sets its id and timestamps.
func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	if r.collection == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	// BSON dates hold milliseconds.
	now := time.Now().UTC().Truncate(time.Millisecond)
	product.ID = primitive.NewObjectID()
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, product); err != nil {
		product.ID = primitive.NilObjectID
		return wrapMongoError(err, "insert product")
	}
	return nil
}

// UpdateByName applies update to the oldest product with the given name.
func (r *MongoProductRepository) UpdateByName(ctx context.Context, name string, update models.ProductUpdate) (*models.Product, error) {
	return r.updateOne(ctx, bson.M{"name": name}, update, "update product by name")
}

// UpdateByID applies update to the product with the given id.
func (r *MongoProductRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	return r.updateOne(ctx, bson.M{"_id": id}, update, "update product by id")
}

// DeleteByName removes the oldest product with the given name.
func (r *MongoProductRepository) DeleteByName(ctx context.Context, name string) (*models.Product, error) {
	return r.deleteOne(ctx, bson.M{"name": name}, "delete product by name")
}

// DeleteByID removes the product with the given id.
func (r *MongoProductRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return r.deleteOne(ctx, bson.M{"_id": id}, "delete product by id")
}

// EnsureIndexes creates the name index. Switching between unique and non-unique
// drops the existing index first.
func (r *MongoProductRepository) EnsureIndexes(ctx context.Context, unique bool) error {
	if r.collection == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName(nameIndex).SetUnique(unique),
	}
	_, err := r.collection.Indexes().CreateOne(ctx, model)
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Name != "IndexOptionsConflict" {
		return wrapMongoError(err, "create name index")
	}
	if _, err := r.collection.Indexes().DropOne(ctx, nameIndex); err != nil {
		return wrapMongoError(err, "drop name index")
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, model); err != nil {
		return wrapMongoError(err, "recreate name index")
	}
	return nil
}

// Ping checks that the primary is reachable.
func (r *MongoProductRepository) Ping(ctx context.Context) error {
	if r.collection == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.collection.Database().Client().Ping(ctx, nil); err != nil {
		return errors.Wrap(err, "ping mongodb")
	}
	return nil
}

func (r *MongoProductRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.Product, error) {
	if r.collection == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var product models.Product
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetSort(oldestFirst)).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoError(err, op)
	}
	return &product, nil
}

func (r *MongoProductRepository) updateOne(ctx context.Context, filter bson.M, update models.ProductUpdate, op string) (*models.Product, error) {
	if update.IsEmpty() {
		return r.findOne(ctx, filter, op)
	}
	if r.collection == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetSort(oldestFirst).
		SetReturnDocument(options.After)

	var product models.Product
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": updateDocument(update)}, opts).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoError(err, op)
	}
	return &product, nil
}

func (r *MongoProductRepository) deleteOne(ctx context.Context, filter bson.M, op string) (*models.Product, error) {
	if r.collection == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var product models.Product
	err := r.collection.FindOneAndDelete(ctx, filter, options.FindOneAndDelete().SetSort(oldestFirst)).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoError(err, op)
	}
	return &product, nil
}

func (r *MongoProductRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// updateDocument builds the $set document for the non-nil fields of update.
func updateDocument(update models.ProductUpdate) bson.M {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	return set
}

func wrapMongoError(err error, op string) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(ErrDuplicateKey, op)
	}
	return errors.Wrap(err, op)
}
