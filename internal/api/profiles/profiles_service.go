package profiles

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

	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ ProfileService = (*ProfileServiceImpl)(nil)

type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	Me(ctx context.Context, userID uuid.UUID) (*types.MeResponse, error)
	ListUsers(ctx context.Context, filter types.UserFilter) (*types.UserListResponse, error)
	SetVerified(ctx context.Context, adminID, userID uuid.UUID, req types.SetVerifiedRequest) (*types.Profile, error)
	SetRole(ctx context.Context, adminID, userID uuid.UUID, role types.Role) (*types.Profile, error)
	Stats(ctx context.Context) *types.PlatformStats
}

type ProfileServiceImpl struct {
	logger *slog.Logger
	repo   ProfileRepo
	now    func() time.Time
}

func NewProfileService(repo ProfileRepo, logger *slog.Logger) *ProfileServiceImpl {
	return &ProfileServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func (s *ProfileServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

func (s *ProfileServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*types.MeResponse, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "Me", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "Profile loaded")
	return &types.MeResponse{
		User:         *p,
		Role:         p.Role,
		RedirectPath: types.DashboardPathFor(string(p.Role)),
	}, nil
}

// ListUsers runs the page query and the total count concurrently.
func (s *ProfileServiceImpl) ListUsers(ctx context.Context, filter types.UserFilter) (*types.UserListResponse, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "ListUsers", trace.WithAttributes(
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	))
	defer span.End()

	var users []types.Profile
	var total int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListProfiles(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountProfiles(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	span.SetStatus(codes.Ok, "Users listed")
	return &types.UserListResponse{
		Users:      users,
		Pagination: types.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *ProfileServiceImpl) SetVerified(ctx context.Context, adminID, userID uuid.UUID, req types.SetVerifiedRequest) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "SetVerified", trace.WithAttributes(
		attribute.String("target.id", userID.String()),
	))
	defer span.End()

	var notes *string
	if n := strings.TrimSpace(req.Notes); n != "" {
		notes = &n
	}
	p, err := s.repo.SetVerified(ctx, userID, *req.Verified, notes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.InfoContext(ctx, "User verification changed",
		slog.String("admin", adminID.String()),
		slog.String("userID", userID.String()),
		slog.Bool("verified", p.Verified))
	span.SetStatus(codes.Ok, "Verification updated")
	return p, nil
}

// SetRole changes another user's role. Admins cannot change their own role,
// so the last admin cannot lock themselves out.
func (s *ProfileServiceImpl) SetRole(ctx context.Context, adminID, userID uuid.UUID, role types.Role) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "SetRole", trace.WithAttributes(
		attribute.String("target.id", userID.String()),
		attribute.String("user.role", string(role)),
	))
	defer span.End()

	if adminID == userID {
		return nil, fmt.Errorf("admins cannot change their own role: %w", types.ErrForbidden)
	}
	p, err := s.repo.SetRole(ctx, userID, role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.InfoContext(ctx, "User role changed",
		slog.String("admin", adminID.String()),
		slog.String("userID", userID.String()),
		slog.String("role", string(role)))
	span.SetStatus(codes.Ok, "Role updated")
	return p, nil
}

// Stats gathers the dashboard counts in parallel. A failing count is logged
// and reported as zero rather than failing the whole response.
func (s *ProfileServiceImpl) Stats(ctx context.Context) *types.PlatformStats {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "Stats")
	defer span.End()

	l := s.logger.With(slog.String("method", "Stats"))
	weekAgo := s.now().AddDate(0, 0, -7)
	stats := &types.PlatformStats{UsersByRole: map[string]int{}}

	isolate := func(name string, fn func() error) func() error {
		return func() error {
			if err := fn(); err != nil {
				l.WarnContext(ctx, "Stat unavailable", slog.String("stat", name), slog.Any("error", err))
				span.RecordError(err)
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(isolate("usersByRole", func() error {
		byRole, err := s.repo.CountUsersByRole(ctx)
		if err != nil {
			return err
		}
		stats.UsersByRole = byRole
		for _, n := range byRole {
			stats.TotalUsers += n
		}
		return nil
	}))
	g.Go(isolate("verifiedUsers", func() (err error) {
		stats.VerifiedUsers, err = s.repo.CountVerifiedUsers(ctx)
		return err
	}))
	g.Go(isolate("recentUsers", func() (err error) {
		stats.RecentUsers, err = s.repo.CountUsersSince(ctx, weekAgo)
		return err
	}))
	g.Go(isolate("totalProducts", func() (err error) {
		stats.TotalProducts, err = s.repo.CountProducts(ctx, false, nil)
		return err
	}))
	g.Go(isolate("activeProducts", func() (err error) {
		stats.ActiveProducts, err = s.repo.CountProducts(ctx, true, nil)
		return err
	}))
	g.Go(isolate("recentProducts", func() (err error) {
		stats.RecentProducts, err = s.repo.CountProducts(ctx, false, &weekAgo)
		return err
	}))
	g.Go(isolate("pendingReviews", func() (err error) {
		stats.PendingReviews, err = s.repo.CountPendingReviews(ctx)
		return err
	}))
	_ = g.Wait()

	span.SetStatus(codes.Ok, "Stats gathered")
	return stats
}
