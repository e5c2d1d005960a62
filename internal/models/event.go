package models

import "time"

// Product event types published after a successful write.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// ProductEvent describes a change to a product.
type ProductEvent struct {
	Type       string    `json:"type"`
	ProductID  string    `json:"product_id"`
	Product    *Product  `json:"product,omitempty"` // nil for deletions
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProductEvent builds an event for p. Deletions carry only the id.
func NewProductEvent(eventType string, p *Product) ProductEvent {
	event := ProductEvent{
		Type:       eventType,
		ProductID:  p.ID.Hex(),
		OccurredAt: time.Now().UTC(),
	}
	if eventType != EventProductDeleted {
		event.Product = p
	}
	return event
}
