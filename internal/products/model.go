package products

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrValidation = errors.New("invalid product")
)

const (
	EventsQueue  = "products.events"
	EventCreated = "product_created"
	EventUpdated = "product_updated"
	EventDeleted = "product_deleted"
)

// ValidationError reports a payload or field that breaks the product rules.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Product is a catalog entry. A zero ID marks a transient product that has
// not been stored yet.
type Product struct {
	ID          int64           `json:"id" example:"1"`
	Name        string          `json:"name" validate:"required,notblank,max=100" example:"Fedora"`
	Description string          `json:"description" validate:"max=250" example:"A red hat"`
	Price       decimal.Decimal `json:"price" validate:"-" swaggertype:"string" example:"12.5"`
	Available   bool            `json:"available" example:"true"`
	Category    Category        `json:"category" validate:"category" swaggertype:"string" example:"CLOTHS"`
}

func (p Product) String() string {
	return fmt.Sprintf("<Product %s id=[%d]>", p.Name, p.ID)
}

type ProductEvent struct {
	EventType string    `json:"event_type"`
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Category  Category  `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
