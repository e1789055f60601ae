package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/onelink-market/app/db"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ OnboardingRepo = (*PostgresOnboardingRepo)(nil)

type OnboardingRepo interface {
	UpsertStep(ctx context.Context, rec types.ProgressRecord) error
	ListSteps(ctx context.Context, userID uuid.UUID) ([]types.ProgressRecord, error)
	// CompleteOnboarding marks every progress row completed, creating one if
	// the user never saved a step.
	CompleteOnboarding(ctx context.Context, userID uuid.UUID, at time.Time) error
	SaveBrandDetails(ctx context.Context, userID uuid.UUID, details types.BrandDetails, taxIDEnc *string) error
	SavePayout(ctx context.Context, payout types.EncryptedPayout, fields []string) error
}

type PostgresOnboardingRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresOnboardingRepo(pgpool database.Pool, logger *slog.Logger) *PostgresOnboardingRepo {
	return &PostgresOnboardingRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// UpsertStep only ever moves a step forward: current_step keeps its max and
// completed_steps accumulates. data is last write wins.
func (r *PostgresOnboardingRepo) UpsertStep(ctx context.Context, rec types.ProgressRecord) error {
	ctx, span := otel.Tracer("OnboardingRepo").Start(ctx, "UpsertStep", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "onboarding_progress"),
		attribute.Int("onboarding.step", rec.Step),
	))
	defer span.End()

	var role *string
	if rec.Role != nil {
		s := string(*rec.Role)
		role = &s
	}
	data := rec.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	completed := rec.CompletedSteps
	if completed == nil {
		completed = []int{}
	}

	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO onboarding_progress (user_id, step, current_step, completed_steps, data, role, status, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'draft', $7)
        ON CONFLICT (user_id, step) DO UPDATE
        SET current_step = GREATEST(onboarding_progress.current_step, EXCLUDED.current_step),
            completed_steps = ARRAY(
                SELECT DISTINCT s
                FROM unnest(onboarding_progress.completed_steps || EXCLUDED.completed_steps) AS s
                ORDER BY s),
            data = EXCLUDED.data,
            role = COALESCE(EXCLUDED.role, onboarding_progress.role),
            updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.Step, rec.CurrentStep, completed, string(data), role, rec.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert onboarding step", slog.Int("step", rec.Step), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return fmt.Errorf("database error saving onboarding step: %w", err)
	}
	span.SetStatus(codes.Ok, "Step saved")
	return nil
}

func (r *PostgresOnboardingRepo) ListSteps(ctx context.Context, userID uuid.UUID) ([]types.ProgressRecord, error) {
	ctx, span := otel.Tracer("OnboardingRepo").Start(ctx, "ListSteps", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "onboarding_progress"),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT step, current_step, completed_steps, data, role, status, updated_at
        FROM onboarding_progress
        WHERE user_id = $1
        ORDER BY updated_at DESC`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing onboarding steps: %w", err)
	}
	defer rows.Close()

	var out []types.ProgressRecord
	for rows.Next() {
		rec := types.ProgressRecord{UserID: userID}
		var (
			data   []byte
			role   *string
			status string
		)
		if err := rows.Scan(&rec.Step, &rec.CurrentStep, &rec.CompletedSteps, &data, &role, &status, &rec.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan onboarding step: %w", err)
		}
		rec.Data = json.RawMessage(data)
		rec.Status = types.ProgressStatus(status)
		if role != nil {
			if parsed, err := types.ParseRole(*role); err == nil {
				rec.Role = &parsed
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating onboarding steps: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (r *PostgresOnboardingRepo) CompleteOnboarding(ctx context.Context, userID uuid.UUID, at time.Time) error {
	ctx, span := otel.Tracer("OnboardingRepo").Start(ctx, "CompleteOnboarding", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "onboarding_progress"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE onboarding_progress SET status = 'completed', updated_at = $2
        WHERE user_id = $1`, userID, at)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error completing onboarding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
            INSERT INTO onboarding_progress (user_id, step, current_step, status, updated_at)
            VALUES ($1, 1, 1, 'completed', $2)`, userID, at); err != nil {
			span.RecordError(err)
			return fmt.Errorf("database error completing onboarding: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit onboarding completion: %w", err)
	}
	span.SetStatus(codes.Ok, "Onboarding completed")
	return nil
}

func (r *PostgresOnboardingRepo) SaveBrandDetails(ctx context.Context, userID uuid.UUID, d types.BrandDetails, taxIDEnc *string) error {
	ctx, span := otel.Tracer("OnboardingRepo").Start(ctx, "SaveBrandDetails", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "brand_details"),
	))
	defer span.End()

	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO brand_details (user_id, company_name, company_website, industry, company_size,
                                   description, business_registration_number, tax_id_enc)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)
        ON CONFLICT (user_id) DO UPDATE
        SET company_name = EXCLUDED.company_name,
            company_website = EXCLUDED.company_website,
            industry = EXCLUDED.industry,
            company_size = EXCLUDED.company_size,
            description = EXCLUDED.description,
            business_registration_number = EXCLUDED.business_registration_number,
            tax_id_enc = EXCLUDED.tax_id_enc,
            updated_at = now()`,
		userID, d.CompanyName, d.CompanyWebsite, d.Industry, d.CompanySize,
		d.Description, d.BusinessRegistrationNumber, taxIDEnc)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save brand details", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return fmt.Errorf("database error saving brand details: %w", err)
	}
	span.SetStatus(codes.Ok, "Brand details saved")
	return nil
}

// SavePayout stores the sealed payout details and an audit entry naming the
// fields that were provided. Values never reach the audit log.
func (r *PostgresOnboardingRepo) SavePayout(ctx context.Context, p types.EncryptedPayout, fields []string) error {
	ctx, span := otel.Tracer("OnboardingRepo").Start(ctx, "SavePayout", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "influencer_payouts"),
	))
	defer span.End()

	var address *string
	if p.Address != nil {
		b, err := json.Marshal(p.Address)
		if err != nil {
			return fmt.Errorf("failed to encode payout address: %w", err)
		}
		s := string(b)
		address = &s
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        INSERT INTO influencer_payouts (user_id, bank_name, account_holder_name, account_number_enc,
                                        routing_number_enc, swift_code_enc, tax_id_enc, address)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id) DO UPDATE
        SET bank_name = EXCLUDED.bank_name,
            account_holder_name = EXCLUDED.account_holder_name,
            account_number_enc = EXCLUDED.account_number_enc,
            routing_number_enc = EXCLUDED.routing_number_enc,
            swift_code_enc = EXCLUDED.swift_code_enc,
            tax_id_enc = EXCLUDED.tax_id_enc,
            address = EXCLUDED.address,
            updated_at = now()`,
		p.UserID, p.BankName, p.AccountHolderName, p.AccountNumberEnc,
		p.RoutingNumberEnc, p.SwiftCodeEnc, p.TaxIDEnc, address); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save payout details", slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("database error saving payout details: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO payout_audit_log (user_id, action, fields) VALUES ($1, 'upsert', $2)`,
		p.UserID, fields); err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error writing payout audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit payout details: %w", err)
	}
	span.SetStatus(codes.Ok, "Payout details saved")
	return nil
}
