package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
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

var _ ProductRepo = (*PostgresProductRepo)(nil)

type ProductRepo interface {
	ListProducts(ctx context.Context, filter types.ProductFilter) ([]types.Product, error)
	CountProducts(ctx context.Context, filter types.ProductFilter) (int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	CreateProduct(ctx context.Context, supplierID uuid.UUID, in types.ProductInput, at time.Time) (*types.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in types.ProductInput, at time.Time) (*types.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type PostgresProductRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresProductRepo(pgpool database.Pool, logger *slog.Logger) *PostgresProductRepo {
	return &PostgresProductRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const productColumns = `id, supplier_id, title, description, price_cents, stock_count, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	if err := row.Scan(&p.ID, &p.SupplierID, &p.Title, &p.Description, &p.PriceCents,
		&p.StockCount, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProductRepo) span(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("ProductRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
	))
}

func productWhere(filter types.ProductFilter) (string, []any) {
	conds := []string{"active = true"}
	var args []any
	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		conds = append(conds, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresProductRepo) ListProducts(ctx context.Context, filter types.ProductFilter) ([]types.Product, error) {
	ctx, span := r.span(ctx, "ListProducts")
	defer span.End()

	where, args := productWhere(filter)
	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list products", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing products: %w", err)
	}
	defer rows.Close()

	out := make([]types.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	span.SetAttributes(attribute.Int("results.count", len(out)))
	return out, nil
}

func (r *PostgresProductRepo) CountProducts(ctx context.Context, filter types.ProductFilter) (int, error) {
	ctx, span := r.span(ctx, "CountProducts")
	defer span.End()

	where, args := productWhere(filter)
	var n int
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("database error counting products: %w", err)
	}
	return n, nil
}

func (r *PostgresProductRepo) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	ctx, span := r.span(ctx, "GetProduct")
	defer span.End()

	p, err := scanProduct(r.pgpool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching product: %w", err)
	}
	return p, nil
}

func activeOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func (r *PostgresProductRepo) CreateProduct(ctx context.Context, supplierID uuid.UUID, in types.ProductInput, at time.Time) (*types.Product, error) {
	ctx, span := r.span(ctx, "CreateProduct")
	defer span.End()

	p, err := scanProduct(r.pgpool.QueryRow(ctx, `
        INSERT INTO products (supplier_id, title, description, price_cents, stock_count, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        RETURNING `+productColumns,
		supplierID, in.Title, in.Description, in.PriceCents, in.StockCount, activeOrDefault(in.Active), at))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert product", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating product: %w", err)
	}
	span.SetStatus(codes.Ok, "Product created")
	return p, nil
}

func (r *PostgresProductRepo) UpdateProduct(ctx context.Context, id uuid.UUID, in types.ProductInput, at time.Time) (*types.Product, error) {
	ctx, span := r.span(ctx, "UpdateProduct")
	defer span.End()

	p, err := scanProduct(r.pgpool.QueryRow(ctx, `
        UPDATE products
        SET title = $2, description = $3, price_cents = $4, stock_count = $5,
            active = COALESCE($6, active), updated_at = $7
        WHERE id = $1
        RETURNING `+productColumns,
		id, in.Title, in.Description, in.PriceCents, in.StockCount, in.Active, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error updating product: %w", err)
	}
	return p, nil
}

func (r *PostgresProductRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.span(ctx, "DeleteProduct")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %w", types.ErrNotFound)
	}
	return nil
}
