package types

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id"`
	SupplierID  uuid.UUID `json:"supplier_id"`
	Title       string    `json:"title" example:"Linen shirt"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents" example:"2599"`
	StockCount  int       `json:"stock_count" example:"12"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductInput struct {
	Title       string `json:"title" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=5000"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	StockCount  int    `json:"stock_count" validate:"gte=0"`
	Active      *bool  `json:"active,omitempty"`
}

// ProductFilter narrows the public catalog listing. Only active products are
// listed.
type ProductFilter struct {
	Page       int
	Limit      int
	SupplierID *uuid.UUID
	Search     string
}

func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type ProductListResponse struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}
