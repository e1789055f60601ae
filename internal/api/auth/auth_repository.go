package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/onelink-market/app/db"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo persists identities. Creating an identity always creates its
// profile in the same transaction.
type AuthRepo interface {
	CreateUserWithProfile(ctx context.Context, email, passwordHash, name string, role types.Role) (*types.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*types.Identity, error)
	GetOrCreateProviderUser(ctx context.Context, provider, providerUserID, email, name string) (*types.Identity, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresAuthRepo(pgpool database.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const insertProfileSQL = `
        INSERT INTO profiles (user_id, email, name, role)
        VALUES ($1, $2, $3, $4)`

func (r *PostgresAuthRepo) CreateUserWithProfile(ctx context.Context, email, passwordHash, name string, role types.Role) (*types.Identity, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUserWithProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users, profiles"),
		attribute.String("db.operation", "INSERT"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUserWithProfile"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u types.Identity
	err = tx.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, provider)
        VALUES (lower($1), $2, 'password')
        RETURNING id, email, provider, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.WarnContext(ctx, "Email already registered")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("a user with this email already exists: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	if _, err = tx.Exec(ctx, insertProfileSQL, u.ID, u.Email, name, role); err != nil {
		l.ErrorContext(ctx, "Failed to insert profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating profile: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	l.InfoContext(ctx, "User and profile created", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return &u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.Identity, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var u types.Identity
	var hash *string
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, email, password_hash, provider, created_at
        FROM users WHERE email = lower($1)`, email,
	).Scan(&u.ID, &u.Email, &hash, &u.Provider, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch user by email", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	span.SetStatus(codes.Ok, "User found")
	return &u, nil
}

// GetOrCreateProviderUser links an OAuth identity to a user, creating the
// user and a customer profile on first sign-in.
func (r *PostgresAuthRepo) GetOrCreateProviderUser(ctx context.Context, provider, providerUserID, email, name string) (*types.Identity, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetOrCreateProviderUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("auth.provider", provider),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetOrCreateProviderUser"), slog.String("provider", provider))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u types.Identity
	err = tx.QueryRow(ctx, `
        SELECT id, email, provider, created_at FROM users
        WHERE (provider = $1 AND provider_user_id = $2) OR email = lower($3)
        ORDER BY (provider = $1 AND provider_user_id = $2) DESC
        LIMIT 1`, provider, providerUserID, email,
	).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "Existing user")
		return &u, tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		l.ErrorContext(ctx, "Failed to look up provider user", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching provider user: %w", err)
	}

	err = tx.QueryRow(ctx, `
        INSERT INTO users (email, provider, provider_user_id)
        VALUES (lower($1), $2, $3)
        RETURNING id, email, provider, created_at`, email, provider, providerUserID,
	).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert provider user", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error creating provider user: %w", err)
	}
	if _, err = tx.Exec(ctx, insertProfileSQL, u.ID, u.Email, name, types.RoleCustomer); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error creating profile: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit provider user: %w", err)
	}
	l.InfoContext(ctx, "Provider user created", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "Provider user created")
	return &u, nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdatePassword", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Password updated")
	return nil
}
