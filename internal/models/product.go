package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product represents a product in the catalogue.
type Product struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Price       float64            `json:"price" bson:"price"`
	Category    string             `json:"category" bson:"category"`
	Quantity    int                `json:"quantity" bson:"quantity"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreateProductRequest is the body of POST /create.
// Fields are pointers so a missing key can be told apart from a zero value.
type CreateProductRequest struct {
	Name        *string  `json:"name" validate:"product_name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"product_price"`
	Category    *string  `json:"category" validate:"product_category"`
	Quantity    *float64 `json:"quantity" validate:"product_quantity"`
}

// UpdateProductRequest is the body of PUT /update/:id.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitnil,product_name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitnil,product_price"`
	Category    *string  `json:"category" validate:"omitnil,product_category"`
	Quantity    *float64 `json:"quantity" validate:"omitnil,product_quantity"`
}

// UpdateProductByNameRequest is the body of PUT /update?name=...
// The new name travels as newName because name addresses the product.
type UpdateProductByNameRequest struct {
	NewName     *string  `json:"newName" validate:"omitnil,product_name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitnil,product_price"`
	Category    *string  `json:"category" validate:"omitnil,product_category"`
	Quantity    *float64 `json:"quantity" validate:"omitnil,product_quantity"`
}

// ProductUpdate carries the fields of a partial update. Nil fields are left untouched.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	Quantity    *int
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil && u.Category == nil && u.Quantity == nil
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
}
