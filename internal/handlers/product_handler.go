package handlers

import (
	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"productapi/internal/models"
	"productapi/internal/services"
)

const (
	msgCreated        = "New product created successfully"
	msgRetrieved      = "Product retrieved successfully"
	msgUpdated        = "Product updated successfully."
	msgDeleted        = "Product deleted successfully."
	msgNotFound       = "Product not found"
	msgInvalidID      = "Invalid product ID."
	msgProductExists  = "A product with this name already exists."
	msgInternalFailed = "Internal server error"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	log     *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the product routes with the Fiber router.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/create", h.HandleCreateProduct)
	router.Get("/product", h.HandleGetProductByName)
	router.Get("/product/:id", h.HandleGetProductByID)
	router.Put("/update", h.HandleUpdateProductByName)
	router.Put("/update/:id", h.HandleUpdateProductByID)
	router.Delete("/delete", h.HandleDeleteProductByName)
	router.Delete("/delete/:id", h.HandleDeleteProductByID)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req models.CreateProductRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, services.BodyError(err))
	}

	product, err := h.service.CreateProduct(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": msgCreated,
		"data":    product,
	})
}

// HandleGetProductByName retrieves a product by the name query parameter.
func (h *ProductHandler) HandleGetProductByName(c *fiber.Ctx) error {
	product, err := h.service.GetProductByName(c.UserContext(), c.Query("name"))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": msgRetrieved,
		"data":    product,
	})
}

// HandleGetProductByID retrieves a product by its id.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": msgRetrieved,
		"data":    product,
	})
}

// HandleUpdateProductByName updates the product named by the name query parameter.
func (h *ProductHandler) HandleUpdateProductByName(c *fiber.Ctx) error {
	var req models.UpdateProductByNameRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, services.BodyError(err))
	}

	product, err := h.service.UpdateProductByName(c.UserContext(), c.Query("name"), req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": msgUpdated,
		"data":    product,
	})
}

// HandleUpdateProductByID updates a product by its id.
func (h *ProductHandler) HandleUpdateProductByID(c *fiber.Ctx) error {
	var req models.UpdateProductRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, services.BodyError(err))
	}

	product, err := h.service.UpdateProductByID(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": msgUpdated,
		"data":    product,
	})
}

// HandleDeleteProductByName deletes the product named by the name query parameter.
func (h *ProductHandler) HandleDeleteProductByName(c *fiber.Ctx) error {
	if err := h.service.DeleteProductByName(c.UserContext(), c.Query("name")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": msgDeleted})
}

// HandleDeleteProductByID deletes a product by its id.
func (h *ProductHandler) HandleDeleteProductByID(c *fiber.Ctx) error {
	if err := h.service.DeleteProductByID(c.UserContext(), c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": msgDeleted})
}

// respondError maps service errors to a status code and a {message} body.
func (h *ProductHandler) respondError(c *fiber.Ctx, err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": validationErr.Message})
	case errors.Is(err, services.ErrInvalidProductID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msgInvalidID})
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": msgNotFound})
	case errors.Is(err, services.ErrProductExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": msgProductExists})
	}

	h.log.Error("Product request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	msg := err.Error()
	if msg == "" {
		msg = msgInternalFailed
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": msg})
}

// parseBody decodes a JSON body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}
