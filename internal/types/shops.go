package types

import (
	"time"

	"github.com/google/uuid"
)

// ShopItem is a catalog product curated into an influencer's shop, with the
// influencer's overrides applied.
type ShopItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title" example:"Linen shirt"`
	CustomTitle    *string   `json:"custom_title,omitempty"`
	BasePriceCents int64     `json:"base_price_cents" example:"2599"`
	SalePriceCents int64     `json:"sale_price_cents" example:"2999"`
	StockCount     int       `json:"stock_count"`
	InStock        bool      `json:"in_stock"`
	Published      bool      `json:"published"`
	AddedAt        time.Time `json:"added_at"`
}

type AddShopItemRequest struct {
	ProductID      string  `json:"product_id" validate:"required,uuid"`
	CustomTitle    *string `json:"custom_title,omitempty" validate:"omitempty,max=200"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty" validate:"omitempty,gte=0"`
}

// UpdateShopItemRequest leaves unset fields untouched.
type UpdateShopItemRequest struct {
	CustomTitle    *string `json:"custom_title,omitempty" validate:"omitempty,max=200"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty" validate:"omitempty,gte=0"`
	Published      *bool   `json:"published,omitempty"`
}

type ShopResponse struct {
	Items []ShopItem `json:"items"`
}

// Storefront is the public view of an influencer shop. Only published items
// of active products are listed.
type Storefront struct {
	InfluencerID uuid.UUID  `json:"influencer_id"`
	Handle       string     `json:"handle" example:"janes-picks"`
	Name         string     `json:"name"`
	Verified     bool       `json:"verified"`
	Items        []ShopItem `json:"items"`
}
