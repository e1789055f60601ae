package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/onelink-market/app/db"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ ShopRepo = (*PostgresShopRepo)(nil)

type ShopRepo interface {
	ListItems(ctx context.Context, influencerID uuid.UUID, publishedOnly bool) ([]types.ShopItem, error)
	// AddItem fails with ErrConflict when the product is already in the shop.
	AddItem(ctx context.Context, influencerID uuid.UUID, item types.ShopItem) error
	UpdateItem(ctx context.Context, influencerID, productID uuid.UUID, req types.UpdateShopItemRequest, at time.Time) error
	RemoveItem(ctx context.Context, influencerID, productID uuid.UUID) error
	FindInfluencerByHandle(ctx context.Context, handle string) (*types.Storefront, error)
}

type PostgresShopRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresShopRepo(pgpool database.Pool, logger *slog.Logger) *PostgresShopRepo {
	return &PostgresShopRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresShopRepo) span(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("ShopRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "shop_products"),
		attribute.String("db.operation", operation),
	))
}

func (r *PostgresShopRepo) ListItems(ctx context.Context, influencerID uuid.UUID, publishedOnly bool) ([]types.ShopItem, error) {
	ctx, span := r.span(ctx, "ListItems", "SELECT")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT s.product_id, p.title, s.custom_title, p.price_cents, s.sale_price_cents,
               p.stock_count, s.published, s.created_at
        FROM shop_products s
        JOIN products p ON p.id = s.product_id
        WHERE s.influencer_id = $1 AND p.active AND (NOT $2 OR s.published)
        ORDER BY s.created_at DESC`, influencerID, publishedOnly)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list shop items", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing shop items: %w", err)
	}
	defer rows.Close()

	out := []types.ShopItem{}
	for rows.Next() {
		var it types.ShopItem
		if err := rows.Scan(&it.ProductID, &it.Title, &it.CustomTitle, &it.BasePriceCents, &it.SalePriceCents,
			&it.StockCount, &it.Published, &it.AddedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan shop item row: %w", err)
		}
		it.InStock = it.StockCount > 0
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shop item rows: %w", err)
	}
	span.SetAttributes(attribute.Int("results.count", len(out)))
	return out, nil
}

func (r *PostgresShopRepo) AddItem(ctx context.Context, influencerID uuid.UUID, item types.ShopItem) error {
	ctx, span := r.span(ctx, "AddItem", "INSERT")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
        INSERT INTO shop_products (influencer_id, product_id, custom_title, sale_price_cents, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (influencer_id, product_id) DO NOTHING`,
		influencerID, item.ProductID, item.CustomTitle, item.SalePriceCents, item.Published, item.AddedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert shop item", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error adding shop item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product already in your shop: %w", types.ErrConflict)
	}
	span.SetStatus(codes.Ok, "Shop item added")
	return nil
}

func (r *PostgresShopRepo) UpdateItem(ctx context.Context, influencerID, productID uuid.UUID, req types.UpdateShopItemRequest, at time.Time) error {
	ctx, span := r.span(ctx, "UpdateItem", "UPDATE")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
        UPDATE shop_products
        SET custom_title = COALESCE($3, custom_title),
            sale_price_cents = COALESCE($4, sale_price_cents),
            published = COALESCE($5, published),
            updated_at = $6
        WHERE influencer_id = $1 AND product_id = $2`,
		influencerID, productID, req.CustomTitle, req.SalePriceCents, req.Published, at)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error updating shop item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product is not in your shop: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresShopRepo) RemoveItem(ctx context.Context, influencerID, productID uuid.UUID) error {
	ctx, span := r.span(ctx, "RemoveItem", "DELETE")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM shop_products WHERE influencer_id = $1 AND product_id = $2`,
		influencerID, productID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error removing shop item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product is not in your shop: %w", types.ErrNotFound)
	}
	return nil
}

// FindInfluencerByHandle resolves a display name to an influencer. Items are
// left empty.
func (r *PostgresShopRepo) FindInfluencerByHandle(ctx context.Context, handle string) (*types.Storefront, error) {
	ctx, span := otel.Tracer("ShopRepo").Start(ctx, "FindInfluencerByHandle", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
	))
	defer span.End()

	var sf types.Storefront
	err := r.pgpool.QueryRow(ctx, `
        SELECT user_id, display_name, name, verified
        FROM profiles
        WHERE lower(display_name) = lower($1) AND role = 'influencer'`, handle,
	).Scan(&sf.InfluencerID, &sf.Handle, &sf.Name, &sf.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shop not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching shop owner: %w", err)
	}
	return &sf, nil
}
