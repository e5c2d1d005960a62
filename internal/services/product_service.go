package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"productapi/internal/models"
	"productapi/internal/repositories"
)

var (
	// ErrProductNotFound is returned when no product matches the lookup.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidProductID is returned for identifiers that are not 24 character hex ObjectIDs.
	ErrInvalidProductID = errors.New("invalid product id")
	// ErrProductExists is returned when names are unique and the name is taken.
	ErrProductExists = errors.New("product with this name already exists")
)

// EventPublisher delivers product events to interested consumers.
type EventPublisher interface {
	PublishProductEvent(event models.ProductEvent) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
	validate  *validator.Validate
	log       *zap.Logger
}

// NewProductService creates a new ProductService. publisher may be nil.
func NewProductService(repo repositories.ProductRepository, publisher EventPublisher, log *zap.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
		validate:  newValidator(),
		log:       log,
	}
}

// CreateProduct validates req and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:     strings.TrimSpace(*req.Name),
		Price:    *req.Price,
		Category: strings.TrimSpace(*req.Category),
		Quantity: int(*req.Quantity),
	}
	if req.Description != nil {
		product.Description = *req.Description
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, storeError(err, "create product")
	}

	s.publish(models.EventProductCreated, product)
	return product, nil
}

// GetProductByName retrieves the first product with the given name.
func (s *ProductService) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	if err := s.validateName(name); err != nil {
		return nil, err
	}

	product, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, storeError(err, "get product by name")
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// GetProductByID retrieves a single product by its id.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, storeError(err, "get product by id")
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// UpdateProductByName changes the fields present in req on the first product named name.
func (s *ProductService) UpdateProductByName(ctx context.Context, name string, req models.UpdateProductByNameRequest) (*models.Product, error) {
	if err := s.validateName(name); err != nil {
		return nil, err
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	update := buildUpdate(req.NewName, req.Description, req.Price, req.Category, req.Quantity)
	product, err := s.repo.UpdateByName(ctx, strings.TrimSpace(name), update)
	if err != nil {
		return nil, storeError(err, "update product by name")
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if !update.IsEmpty() {
		s.publish(models.EventProductUpdated, product)
	}
	return product, nil
}

// UpdateProductByID changes the fields present in req on the product with the given id.
func (s *ProductService) UpdateProductByID(ctx context.Context, id string, req models.UpdateProductRequest) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	update := buildUpdate(req.Name, req.Description, req.Price, req.Category, req.Quantity)
	product, err := s.repo.UpdateByID(ctx, oid, update)
	if err != nil {
		return nil, storeError(err, "update product by id")
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if !update.IsEmpty() {
		s.publish(models.EventProductUpdated, product)
	}
	return product, nil
}

// DeleteProductByName deletes the first product with the given name.
func (s *ProductService) DeleteProductByName(ctx context.Context, name string) error {
	if err := s.validateName(name); err != nil {
		return err
	}

	product, err := s.repo.DeleteByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return storeError(err, "delete product by name")
	}
	if product == nil {
		return ErrProductNotFound
	}

	s.publish(models.EventProductDeleted, product)
	return nil
}

// DeleteProductByID deletes the product with the given id.
func (s *ProductService) DeleteProductByID(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	product, err := s.repo.DeleteByID(ctx, oid)
	if err != nil {
		return storeError(err, "delete product by id")
	}
	if product == nil {
		return ErrProductNotFound
	}

	s.publish(models.EventProductDeleted, product)
	return nil
}

// publish sends an event when a publisher is configured. Failures are logged only.
func (s *ProductService) publish(eventType string, product *models.Product) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProductEvent(models.NewProductEvent(eventType, product)); err != nil {
		s.log.Warn("Failed to publish product event",
			zap.String("type", eventType),
			zap.String("product_id", product.ID.Hex()),
			zap.Error(err),
		)
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidProductID
	}
	return oid, nil
}

func storeError(err error, op string) error {
	if errors.Is(err, repositories.ErrDuplicateKey) {
		return ErrProductExists
	}
	return errors.Wrap(err, op)
}

func buildUpdate(name, description *string, price *float64, category *string, quantity *float64) models.ProductUpdate {
	update := models.ProductUpdate{
		Description: description,
		Price:       price,
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		update.Name = &trimmed
	}
	if category != nil {
		trimmed := strings.TrimSpace(*category)
		update.Category = &trimmed
	}
	if quantity != nil {
		q := int(*quantity)
		update.Quantity = &q
	}
	return update
}
