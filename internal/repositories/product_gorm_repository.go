package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"

	"productapi/internal/models"
)

const uniqueNameIndex = "idx_products_name_unique"

// productRecord is the relational row for a product. Ids keep the ObjectID hex form
// so every backend hands out the same kind of identifier.
type productRecord struct {
	ID          string `gorm:"primaryKey;type:varchar(24)"`
	Name        string `gorm:"index;type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Price       float64
	Category    string `gorm:"type:varchar(255);not null"`
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (productRecord) TableName() string {
	return "products"
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
// The *gorm.DB should be opened with TranslateError enabled so unique violations
// surface as gorm.ErrDuplicatedKey. A positive timeout bounds every call.
func NewGORMProductRepository(db *gorm.DB, timeout time.Duration) *GORMProductRepository {
	return &GORMProductRepository{
		db:      db,
		timeout: timeout,
	}
}

// FindByName retrieves the oldest product with the given name.
func (r *GORMProductRepository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	if r.db == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	record, err := r.first(r.db.WithContext(ctx), "name = ?", name)
	if err != nil {
		return nil, errors.Wrap(err, "find product by name")
	}
	if record == nil {
		return nil, nil
	}
	return record.toModel(), nil
}

// FindByID retrieves a single product by its id.
func (r *GORMProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if r.db == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	record, err := r.first(r.db.WithContext(ctx), "id = ?", id.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "find product by id")
	}
	if record == nil {
		return nil, nil
	}
	return record.toModel(), nil
}

// Create inserts a new product and sets its id and timestamps.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if r.db == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record := recordFromModel(product)
	record.ID = primitive.NewObjectID().Hex()
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return wrapGORMError(err, "create product")
	}

	*product = *record.toModel()
	return nil
}

// UpdateByName applies update to the oldest product with the given name.
func (r *GORMProductRepository) UpdateByName(ctx context.Context, name string, update models.ProductUpdate) (*models.Product, error) {
	return r.updateFirst(ctx, update, "update product by name", "name = ?", name)
}

// UpdateByID applies update to the product with the given id.
func (r *GORMProductRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	return r.updateFirst(ctx, update, "update product by id", "id = ?", id.Hex())
}

// DeleteByName removes the oldest product with the given name.
func (r *GORMProductRepository) DeleteByName(ctx context.Context, name string) (*models.Product, error) {
	return r.deleteFirst(ctx, "delete product by name", "name = ?", name)
}

// DeleteByID removes the product with the given id.
func (r *GORMProductRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return r.deleteFirst(ctx, "delete product by id", "id = ?", id.Hex())
}

// EnsureIndexes migrates the products table and adds or drops the unique name index.
func (r *GORMProductRepository) EnsureIndexes(ctx context.Context, unique bool) error {
	if r.db == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	db := r.db.WithContext(ctx)

	if err := db.AutoMigrate(&productRecord{}); err != nil {
		return errors.Wrap(err, "migrate products table")
	}

	stmt := "DROP INDEX IF EXISTS " + uniqueNameIndex
	if unique {
		stmt = "CREATE UNIQUE INDEX IF NOT EXISTS " + uniqueNameIndex + " ON products (name)"
	}
	if err := db.Exec(stmt).Error; err != nil {
		return errors.Wrap(err, "apply unique name index")
	}
	return nil
}

// Ping checks the underlying connection pool.
func (r *GORMProductRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}
	return nil
}

func (r *GORMProductRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// first returns the oldest matching row, or nil when there is none.
func (r *GORMProductRepository) first(db *gorm.DB, query string, arg any) (*productRecord, error) {
	var record productRecord
	err := db.Where(query, arg).Order("id").Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *GORMProductRepository) updateFirst(ctx context.Context, update models.ProductUpdate, op, query string, arg any) (*models.Product, error) {
	if r.db == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var updated *productRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := r.first(tx, query, arg)
		if err != nil || record == nil {
			return err
		}
		if !update.IsEmpty() {
			if err := tx.Model(record).Updates(updateColumns(update)).Error; err != nil {
				return err
			}
			if record, err = r.first(tx, "id = ?", record.ID); err != nil {
				return err
			}
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, wrapGORMError(err, op)
	}
	if updated == nil {
		return nil, nil
	}
	return updated.toModel(), nil
}

func (r *GORMProductRepository) deleteFirst(ctx context.Context, op, query string, arg any) (*models.Product, error) {
	if r.db == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var deleted *productRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := r.first(tx, query, arg)
		if err != nil || record == nil {
			return err
		}
		res := tx.Delete(&productRecord{}, "id = ?", record.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			deleted = record
		}
		return nil
	})
	if err != nil {
		return nil, wrapGORMError(err, op)
	}
	if deleted == nil {
		return nil, nil
	}
	return deleted.toModel(), nil
}

// updateColumns maps the non-nil fields of update to column values.
// UpdatedAt is maintained by GORM.
func updateColumns(update models.ProductUpdate) map[string]any {
	columns := make(map[string]any)
	if update.Name != nil {
		columns["name"] = *update.Name
	}
	if update.Description != nil {
		columns["description"] = *update.Description
	}
	if update.Price != nil {
		columns["price"] = *update.Price
	}
	if update.Category != nil {
		columns["category"] = *update.Category
	}
	if update.Quantity != nil {
		columns["quantity"] = *update.Quantity
	}
	return columns
}

func recordFromModel(p *models.Product) *productRecord {
	return &productRecord{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Quantity:    p.Quantity,
	}
}

func (rec *productRecord) toModel() *models.Product {
	id, _ := primitive.ObjectIDFromHex(rec.ID)
	return &models.Product{
		ID:          id,
		Name:        rec.Name,
		Description: rec.Description,
		Price:       rec.Price,
		Category:    rec.Category,
		Quantity:    rec.Quantity,
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}
}

func wrapGORMError(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(ErrDuplicateKey, op)
	}
	return errors.Wrap(err, op)
}
