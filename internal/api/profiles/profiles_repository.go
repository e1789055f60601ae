package profiles

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

var _ ProfileRepo = (*PostgresProfileRepo)(nil)

// ProfileRepo is the Role & Profile Store.
type ProfileRepo interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	ListProfiles(ctx context.Context, filter types.UserFilter) ([]types.Profile, error)
	CountProfiles(ctx context.Context, filter types.UserFilter) (int, error)
	SetVerified(ctx context.Context, userID uuid.UUID, verified bool, notes *string) (*types.Profile, error)
	SetRole(ctx context.Context, userID uuid.UUID, role types.Role) (*types.Profile, error)
	DisplayNameTaken(ctx context.Context, displayName string, exceptUserID uuid.UUID) (bool, error)

	CountUsersByRole(ctx context.Context) (map[string]int, error)
	CountVerifiedUsers(ctx context.Context) (int, error)
	CountUsersSince(ctx context.Context, since time.Time) (int, error)
	CountProducts(ctx context.Context, activeOnly bool, since *time.Time) (int, error)
	CountPendingReviews(ctx context.Context) (int, error)
}

type PostgresProfileRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresProfileRepo(pgpool database.Pool, logger *slog.Logger) *PostgresProfileRepo {
	return &PostgresProfileRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `user_id, email, name, display_name, role, verified, email_verified,
        verification_notes, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	err := row.Scan(&p.UserID, &p.Email, &p.Name, &p.DisplayName, &p.Role, &p.Verified,
		&p.EmailVerified, &p.VerificationNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "GetProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	p, err := scanProfile(r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Profile not found")
			return nil, fmt.Errorf("profile not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching profile: %w", err)
	}
	span.SetStatus(codes.Ok, "Profile found")
	return p, nil
}

// whereClause builds the shared filter for the admin listing and its count.
func whereClause(filter types.UserFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Role != nil {
		args = append(args, *filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conds = append(conds, fmt.Sprintf("verified = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(email ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresProfileRepo) ListProfiles(ctx context.Context, filter types.UserFilter) ([]types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "ListProfiles", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	))
	defer span.End()

	where, args := whereClause(filter)
	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM profiles%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		profileColumns, where, len(args)-1, len(args))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list profiles", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]types.Profile, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	span.SetAttributes(attribute.Int("results.count", len(profiles)))
	span.SetStatus(codes.Ok, "Profiles listed")
	return profiles, nil
}

func (r *PostgresProfileRepo) CountProfiles(ctx context.Context, filter types.UserFilter) (int, error) {
	where, args := whereClause(filter)
	return r.count(ctx, "CountProfiles", `SELECT count(*) FROM profiles`+where, args...)
}

func (r *PostgresProfileRepo) SetVerified(ctx context.Context, userID uuid.UUID, verified bool, notes *string) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "SetVerified", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.Bool("verified", verified),
	))
	defer span.End()

	p, err := scanProfile(r.pgpool.QueryRow(ctx, `
        UPDATE profiles
        SET verified = $2, verification_notes = COALESCE($3, verification_notes), updated_at = now()
        WHERE user_id = $1
        RETURNING `+profileColumns, userID, verified, notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating verification: %w", err)
	}
	span.SetStatus(codes.Ok, "Verification updated")
	return p, nil
}

func (r *PostgresProfileRepo) SetRole(ctx context.Context, userID uuid.UUID, role types.Role) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "SetRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("user.role", string(role)),
	))
	defer span.End()

	p, err := scanProfile(r.pgpool.QueryRow(ctx, `
        UPDATE profiles SET role = $2, updated_at = now()
        WHERE user_id = $1
        RETURNING `+profileColumns, userID, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating role: %w", err)
	}
	span.SetStatus(codes.Ok, "Role updated")
	return p, nil
}

func (r *PostgresProfileRepo) DisplayNameTaken(ctx context.Context, displayName string, exceptUserID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "DisplayNameTaken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
	))
	defer span.End()

	var taken bool
	err := r.pgpool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM profiles
            WHERE lower(display_name) = lower($1) AND user_id <> $2
        )`, displayName, exceptUserID).Scan(&taken)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("database error checking display name: %w", err)
	}
	return taken, nil
}

func (r *PostgresProfileRepo) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "CountUsersByRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `SELECT role, count(*) FROM profiles GROUP BY role`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error counting roles: %w", err)
	}
	defer rows.Close()

	byRole := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		byRole[role] = n
	}
	return byRole, rows.Err()
}

func (r *PostgresProfileRepo) CountVerifiedUsers(ctx context.Context) (int, error) {
	return r.count(ctx, "CountVerifiedUsers", `SELECT count(*) FROM profiles WHERE verified`)
}

func (r *PostgresProfileRepo) CountUsersSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "CountUsersSince", `SELECT count(*) FROM profiles WHERE created_at >= $1`, since)
}

func (r *PostgresProfileRepo) CountProducts(ctx context.Context, activeOnly bool, since *time.Time) (int, error) {
	return r.count(ctx, "CountProducts", `
        SELECT count(*) FROM products
        WHERE ($1 = false OR active) AND ($2::timestamptz IS NULL OR created_at >= $2)`, activeOnly, since)
}

func (r *PostgresProfileRepo) CountPendingReviews(ctx context.Context) (int, error) {
	return r.count(ctx, "CountPendingReviews",
		`SELECT count(*) FROM verification_requests WHERE status IN ('submitted', 'in_review')`)
}

func (r *PostgresProfileRepo) count(ctx context.Context, name, query string, args ...any) (int, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, name, trace.WithAttributes(semconv.DBSystemPostgreSQL))
	defer span.End()

	var n int
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB count failed")
		return 0, fmt.Errorf("database error in %s: %w", name, err)
	}
	return n, nil
}
