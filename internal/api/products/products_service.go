package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ ProductService = (*ProductServiceImpl)(nil)

type ProductService interface {
	List(ctx context.Context, filter types.ProductFilter) (*types.ProductListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Product, error)
	Create(ctx context.Context, caller *types.Profile, in types.ProductInput) (*types.Product, error)
	Update(ctx context.Context, caller *types.Profile, id uuid.UUID, in types.ProductInput) (*types.Product, error)
	Delete(ctx context.Context, caller *types.Profile, id uuid.UUID) error
}

type ProductServiceImpl struct {
	logger *slog.Logger
	repo   ProductRepo
	now    func() time.Time
}

func NewProductService(repo ProductRepo, logger *slog.Logger) *ProductServiceImpl {
	return &ProductServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func normalize(in types.ProductInput) (types.ProductInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := api.ValidateWith(&in, "Invalid product", nil); err != nil {
		return in, err
	}
	return in, nil
}

// owns reports whether caller may change a product. Admins may change any.
func owns(caller *types.Profile, p *types.Product) bool {
	return caller.Role == types.RoleAdmin || p.SupplierID == caller.UserID
}

func (s *ProductServiceImpl) List(ctx context.Context, filter types.ProductFilter) (*types.ProductListResponse, error) {
	ctx, span := otel.Tracer("ProductService").Start(ctx, "List", trace.WithAttributes(
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	))
	defer span.End()

	var (
		items []types.Product
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.ListProducts(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountProducts(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &types.ProductListResponse{
		Products:   items,
		Pagination: types.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *ProductServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	ctx, span := otel.Tracer("ProductService").Start(ctx, "Get")
	defer span.End()
	return s.repo.GetProduct(ctx, id)
}

func (s *ProductServiceImpl) Create(ctx context.Context, caller *types.Profile, in types.ProductInput) (*types.Product, error) {
	ctx, span := otel.Tracer("ProductService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", caller.UserID.String()),
	))
	defer span.End()

	if caller.Role != types.RoleSupplier {
		return nil, fmt.Errorf("only suppliers can list products: %w", types.ErrForbidden)
	}
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.CreateProduct(ctx, caller.UserID, in, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.InfoContext(ctx, "Product created", slog.String("product_id", p.ID.String()))
	return p, nil
}

func (s *ProductServiceImpl) Update(ctx context.Context, caller *types.Profile, id uuid.UUID, in types.ProductInput) (*types.Product, error) {
	ctx, span := otel.Tracer("ProductService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("product.id", id.String()),
	))
	defer span.End()

	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(caller, current) {
		s.logger.WarnContext(ctx, "Product update by non-owner", slog.String("product_id", id.String()),
			slog.String("user_id", caller.UserID.String()))
		return nil, fmt.Errorf("product belongs to another supplier: %w", types.ErrForbidden)
	}
	p, err := s.repo.UpdateProduct(ctx, id, in, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

func (s *ProductServiceImpl) Delete(ctx context.Context, caller *types.Profile, id uuid.UUID) error {
	ctx, span := otel.Tracer("ProductService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("product.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if !owns(caller, current) {
		return fmt.Errorf("product belongs to another supplier: %w", types.ErrForbidden)
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.logger.InfoContext(ctx, "Product deleted", slog.String("product_id", id.String()))
	return nil
}
