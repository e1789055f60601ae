package verification

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

var _ VerificationRepo = (*PostgresVerificationRepo)(nil)

type VerificationRepo interface {
	GetCode(ctx context.Context, userID uuid.UUID, email string) (*types.VerificationCode, error)
	UpsertCode(ctx context.Context, code types.VerificationCode) error
	DeleteCode(ctx context.Context, userID uuid.UUID, email string) error
	// IncrementAttempts bumps the counter only while it is below max and
	// returns the new value. ErrRateLimited means the limit was already hit.
	IncrementAttempts(ctx context.Context, userID uuid.UUID, email string, max int, at time.Time) (int, error)
	// MarkVerified flags the code and the profile in one transaction.
	MarkVerified(ctx context.Context, userID uuid.UUID, email string, at time.Time) error
	GetStatus(ctx context.Context, userID uuid.UUID) (*types.VerificationStatus, error)
}

type PostgresVerificationRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresVerificationRepo(pgpool database.Pool, logger *slog.Logger) *PostgresVerificationRepo {
	return &PostgresVerificationRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return otel.Tracer("VerificationRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "verification_codes"),
		attribute.String("db.operation", op),
	))
}

func (r *PostgresVerificationRepo) GetCode(ctx context.Context, userID uuid.UUID, email string) (*types.VerificationCode, error) {
	ctx, span := startSpan(ctx, "GetCode", "SELECT")
	defer span.End()

	var c types.VerificationCode
	err := r.pgpool.QueryRow(ctx, `
        SELECT user_id, email, code, expires_at, attempts, verified, verified_at, created_at, updated_at
        FROM verification_codes
        WHERE user_id = $1 AND email = $2`, userID, email,
	).Scan(&c.UserID, &c.Email, &c.Code, &c.ExpiresAt, &c.Attempts, &c.Verified, &c.VerifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Code not found")
			return nil, fmt.Errorf("verification code not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch verification code", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching verification code: %w", err)
	}
	span.SetStatus(codes.Ok, "Code found")
	return &c, nil
}

// UpsertCode replaces whatever code existed for (user_id, email). The
// previous code stops being valid at once.
func (r *PostgresVerificationRepo) UpsertCode(ctx context.Context, c types.VerificationCode) error {
	ctx, span := startSpan(ctx, "UpsertCode", "UPSERT")
	defer span.End()

	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO verification_codes (user_id, email, code, expires_at, attempts, verified, verified_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, false, NULL, $5, $5)
        ON CONFLICT (user_id, email) DO UPDATE
        SET code = EXCLUDED.code,
            expires_at = EXCLUDED.expires_at,
            attempts = 0,
            verified = false,
            verified_at = NULL,
            created_at = EXCLUDED.created_at,
            updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Email, c.Code, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert verification code", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return fmt.Errorf("database error storing verification code: %w", err)
	}
	span.SetStatus(codes.Ok, "Code stored")
	return nil
}

func (r *PostgresVerificationRepo) DeleteCode(ctx context.Context, userID uuid.UUID, email string) error {
	ctx, span := startSpan(ctx, "DeleteCode", "DELETE")
	defer span.End()

	if _, err := r.pgpool.Exec(ctx, `DELETE FROM verification_codes WHERE user_id = $1 AND email = $2`, userID, email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting verification code: %w", err)
	}
	span.SetStatus(codes.Ok, "Code deleted")
	return nil
}

func (r *PostgresVerificationRepo) IncrementAttempts(ctx context.Context, userID uuid.UUID, email string, max int, at time.Time) (int, error) {
	ctx, span := startSpan(ctx, "IncrementAttempts", "UPDATE")
	defer span.End()

	var attempts int
	err := r.pgpool.QueryRow(ctx, `
        UPDATE verification_codes
        SET attempts = attempts + 1, updated_at = $4
        WHERE user_id = $1 AND email = $2 AND attempts < $3
        RETURNING attempts`, userID, email, max, at,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Attempts exhausted")
			return max, fmt.Errorf("too many attempts: %w", types.ErrRateLimited)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return 0, fmt.Errorf("database error incrementing attempts: %w", err)
	}
	span.SetAttributes(attribute.Int("attempts", attempts))
	span.SetStatus(codes.Ok, "Attempt recorded")
	return attempts, nil
}

func (r *PostgresVerificationRepo) MarkVerified(ctx context.Context, userID uuid.UUID, email string, at time.Time) error {
	ctx, span := startSpan(ctx, "MarkVerified", "UPDATE")
	defer span.End()

	l := r.logger.With(slog.String("method", "MarkVerified"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE verification_codes
        SET verified = true, verified_at = $3, updated_at = $3
        WHERE user_id = $1 AND email = $2`, userID, email, at)
	if err != nil {
		l.ErrorContext(ctx, "Failed to mark code verified", slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("database error marking code verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("verification code not found: %w", types.ErrNotFound)
	}

	tag, err = tx.Exec(ctx, `
        UPDATE profiles SET email_verified = true, updated_at = $2
        WHERE user_id = $1`, userID, at)
	if err != nil {
		l.ErrorContext(ctx, "Failed to flag profile email verified", slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("database error updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %w", types.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit verification: %w", err)
	}
	span.SetStatus(codes.Ok, "Email verified")
	return nil
}

func (r *PostgresVerificationRepo) GetStatus(ctx context.Context, userID uuid.UUID) (*types.VerificationStatus, error) {
	ctx, span := otel.Tracer("VerificationRepo").Start(ctx, "GetStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
	))
	defer span.End()

	var s types.VerificationStatus
	err := r.pgpool.QueryRow(ctx, `
        SELECT email, email_verified, verified FROM profiles WHERE user_id = $1`, userID,
	).Scan(&s.Email, &s.EmailVerified, &s.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching verification status: %w", err)
	}
	return &s, nil
}
