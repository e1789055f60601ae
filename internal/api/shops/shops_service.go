package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ ShopService = (*ShopServiceImpl)(nil)

type ShopService interface {
	List(ctx context.Context, influencerID uuid.UUID) (*types.ShopResponse, error)
	Add(ctx context.Context, influencerID uuid.UUID, req types.AddShopItemRequest) (*types.ShopItem, error)
	Update(ctx context.Context, influencerID, productID uuid.UUID, req types.UpdateShopItemRequest) error
	Remove(ctx context.Context, influencerID, productID uuid.UUID) error
	Storefront(ctx context.Context, handle string) (*types.Storefront, error)
}

// ProductReader is the catalog lookup used when curating a shop.
type ProductReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
}

type ShopServiceImpl struct {
	logger   *slog.Logger
	repo     ShopRepo
	products ProductReader
	now      func() time.Time
}

func NewShopService(repo ShopRepo, products ProductReader, logger *slog.Logger) *ShopServiceImpl {
	return &ShopServiceImpl{
		logger:   logger,
		repo:     repo,
		products: products,
		now:      time.Now,
	}
}

func trimTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}

func (s *ShopServiceImpl) List(ctx context.Context, influencerID uuid.UUID) (*types.ShopResponse, error) {
	ctx, span := otel.Tracer("ShopService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", influencerID.String()),
	))
	defer span.End()

	items, err := s.repo.ListItems(ctx, influencerID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, fmt.Errorf("failed to list shop: %w", err)
	}
	return &types.ShopResponse{Items: items}, nil
}

// Add curates an active catalog product. The sale price defaults to the
// catalog price.
func (s *ShopServiceImpl) Add(ctx context.Context, influencerID uuid.UUID, req types.AddShopItemRequest) (*types.ShopItem, error) {
	ctx, span := otel.Tracer("ShopService").Start(ctx, "Add", trace.WithAttributes(
		attribute.String("user.id", influencerID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Add"))

	if err := api.ValidateWith(&req, "Invalid shop item", nil); err != nil {
		return nil, err
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, types.NewValidationError("Invalid shop item", types.FieldErrors{"product_id": "must be a valid id"})
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("product not found or inactive: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.Active {
		return nil, fmt.Errorf("product not found or inactive: %w", types.ErrNotFound)
	}

	item := types.ShopItem{
		ProductID:      product.ID,
		Title:          product.Title,
		CustomTitle:    trimTitle(req.CustomTitle),
		BasePriceCents: product.PriceCents,
		SalePriceCents: product.PriceCents,
		StockCount:     product.StockCount,
		InStock:        product.StockCount > 0,
		Published:      true,
		AddedAt:        s.now().UTC(),
	}
	if req.SalePriceCents != nil {
		item.SalePriceCents = *req.SalePriceCents
	}
	if err := s.repo.AddItem(ctx, influencerID, item); err != nil {
		if !errors.Is(err, types.ErrConflict) {
			span.RecordError(err)
		}
		return nil, err
	}
	l.InfoContext(ctx, "Product added to shop", slog.String("influencer_id", influencerID.String()),
		slog.String("product_id", productID.String()))
	span.SetStatus(codes.Ok, "Shop item added")
	return &item, nil
}

func (s *ShopServiceImpl) Update(ctx context.Context, influencerID, productID uuid.UUID, req types.UpdateShopItemRequest) error {
	ctx, span := otel.Tracer("ShopService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
	))
	defer span.End()

	if err := api.ValidateWith(&req, "Invalid shop item", nil); err != nil {
		return err
	}
	req.CustomTitle = trimTitle(req.CustomTitle)
	if err := s.repo.UpdateItem(ctx, influencerID, productID, req, s.now().UTC()); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *ShopServiceImpl) Remove(ctx context.Context, influencerID, productID uuid.UUID) error {
	ctx, span := otel.Tracer("ShopService").Start(ctx, "Remove", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
	))
	defer span.End()

	if err := s.repo.RemoveItem(ctx, influencerID, productID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "Product removed from shop", slog.String("influencer_id", influencerID.String()),
		slog.String("product_id", productID.String()))
	return nil
}

func (s *ShopServiceImpl) Storefront(ctx context.Context, handle string) (*types.Storefront, error) {
	ctx, span := otel.Tracer("ShopService").Start(ctx, "Storefront", trace.WithAttributes(
		attribute.String("shop.handle", handle),
	))
	defer span.End()

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("shop not found: %w", types.ErrNotFound)
	}
	sf, err := s.repo.FindInfluencerByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	sf.Items, err = s.repo.ListItems(ctx, sf.InfluencerID, true)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list shop: %w", err)
	}
	return sf, nil
}
