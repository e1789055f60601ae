package documents

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

var _ DocumentRepo = (*PostgresDocumentRepo)(nil)

type DocumentRepo interface {
	// OpenRequest returns the user's draft or submitted request, creating a
	// draft when none exists.
	OpenRequest(ctx context.Context, userID uuid.UUID, role types.Role) (*types.VerificationRequest, error)
	LatestRequest(ctx context.Context, userID uuid.UUID) (*types.VerificationRequest, error)
	AddDocument(ctx context.Context, doc types.VerificationDocument) (*types.VerificationDocument, error)
	ListDocuments(ctx context.Context, requestID uuid.UUID) ([]types.VerificationDocument, error)
	UploadedDocTypes(ctx context.Context, userID uuid.UUID) ([]string, error)
	// MarkSubmitted moves the draft request to submitted and stamps the role
	// the user finally applied for.
	MarkSubmitted(ctx context.Context, userID uuid.UUID, role types.Role, at time.Time) error
	// Review records the decision and, for an approval, sets the profile's
	// role and verified flag in the same transaction.
	Review(ctx context.Context, requestID, adminID uuid.UUID, decision types.RequestStatus, reason, notes *string, at time.Time) (*types.VerificationRequest, error)
}

type PostgresDocumentRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresDocumentRepo(pgpool database.Pool, logger *slog.Logger) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const requestColumns = `id, user_id, role, status, rejection_reason, submitted_at, reviewed_at, reviewed_by, created_at, updated_at`

func scanRequest(row pgx.Row) (*types.VerificationRequest, error) {
	var (
		r      types.VerificationRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Role, &status, &r.RejectionReason,
		&r.SubmittedAt, &r.ReviewedAt, &r.ReviewedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = types.RequestStatus(status)
	return &r, nil
}

func normalizeRole(role types.Role) types.Role {
	if role == types.RoleBrand {
		return types.RoleSupplier
	}
	return role
}

func dbSpan(ctx context.Context, name, table string) (context.Context, trace.Span) {
	return otel.Tracer("DocumentRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", table),
	))
}

func (r *PostgresDocumentRepo) OpenRequest(ctx context.Context, userID uuid.UUID, role types.Role) (*types.VerificationRequest, error) {
	ctx, span := dbSpan(ctx, "OpenRequest", "verification_requests")
	defer span.End()

	if !role.Onboardable() {
		return nil, types.NewValidationError("Invalid role", types.FieldErrors{"role": "must be brand or influencer"})
	}

	req, err := scanRequest(r.pgpool.QueryRow(ctx, `
        SELECT `+requestColumns+`
        FROM verification_requests
        WHERE user_id = $1 AND status IN ('draft', 'submitted')
        ORDER BY created_at DESC
        LIMIT 1`, userID))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching verification request: %w", err)
	}

	req, err = scanRequest(r.pgpool.QueryRow(ctx, `
        INSERT INTO verification_requests (user_id, role, status)
        VALUES ($1, $2, 'draft')
        RETURNING `+requestColumns, userID, string(normalizeRole(role))))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create verification request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating verification request: %w", err)
	}
	span.SetStatus(codes.Ok, "Request created")
	return req, nil
}

func (r *PostgresDocumentRepo) LatestRequest(ctx context.Context, userID uuid.UUID) (*types.VerificationRequest, error) {
	ctx, span := dbSpan(ctx, "LatestRequest", "verification_requests")
	defer span.End()

	req, err := scanRequest(r.pgpool.QueryRow(ctx, `
        SELECT `+requestColumns+`
        FROM verification_requests
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("verification request not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching verification request: %w", err)
	}
	return req, nil
}

func (r *PostgresDocumentRepo) AddDocument(ctx context.Context, doc types.VerificationDocument) (*types.VerificationDocument, error) {
	ctx, span := dbSpan(ctx, "AddDocument", "verification_documents")
	defer span.End()

	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO verification_documents (request_id, doc_type, file_name, content_type, size_bytes, storage_key, status)
        VALUES ($1, $2, $3, $4, $5, $6, 'pending')
        RETURNING id, status, created_at`,
		doc.RequestID, doc.DocType, doc.FileName, doc.ContentType, doc.SizeBytes, doc.StorageKey,
	).Scan(&doc.ID, &doc.Status, &doc.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert document record", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error saving document record: %w", err)
	}
	span.SetStatus(codes.Ok, "Document recorded")
	return &doc, nil
}

func (r *PostgresDocumentRepo) ListDocuments(ctx context.Context, requestID uuid.UUID) ([]types.VerificationDocument, error) {
	ctx, span := dbSpan(ctx, "ListDocuments", "verification_documents")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT id, request_id, doc_type, file_name, content_type, size_bytes, storage_key, status, created_at
        FROM verification_documents
        WHERE request_id = $1
        ORDER BY created_at`, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error listing documents: %w", err)
	}
	defer rows.Close()

	docs := []types.VerificationDocument{}
	for rows.Next() {
		var d types.VerificationDocument
		if err := rows.Scan(&d.ID, &d.RequestID, &d.DocType, &d.FileName, &d.ContentType,
			&d.SizeBytes, &d.StorageKey, &d.Status, &d.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func (r *PostgresDocumentRepo) UploadedDocTypes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ctx, span := dbSpan(ctx, "UploadedDocTypes", "verification_documents")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT vr.id, vd.doc_type
        FROM verification_requests vr
        LEFT JOIN verification_documents vd ON vd.request_id = vr.id
        WHERE vr.user_id = $1 AND vr.status IN ('draft', 'submitted')`, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error listing uploaded documents: %w", err)
	}
	defer rows.Close()

	found := false
	out := []string{}
	for rows.Next() {
		var (
			requestID uuid.UUID
			docType   *string
		)
		if err := rows.Scan(&requestID, &docType); err != nil {
			return nil, fmt.Errorf("failed to scan document type: %w", err)
		}
		found = true
		if docType != nil {
			out = append(out, *docType)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document types: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no open verification request: %w", types.ErrNotFound)
	}
	return out, nil
}

func (r *PostgresDocumentRepo) MarkSubmitted(ctx context.Context, userID uuid.UUID, role types.Role, at time.Time) error {
	ctx, span := dbSpan(ctx, "MarkSubmitted", "verification_requests")
	defer span.End()

	if !role.Onboardable() {
		return types.NewValidationError("Invalid role", types.FieldErrors{"role": "must be brand or influencer"})
	}
	tag, err := r.pgpool.Exec(ctx, `
        UPDATE verification_requests
        SET status = 'submitted', role = $2, submitted_at = $3, updated_at = $3
        WHERE user_id = $1 AND status = 'draft'`, userID, string(normalizeRole(role)), at)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error submitting verification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no draft verification request: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresDocumentRepo) Review(ctx context.Context, requestID, adminID uuid.UUID, decision types.RequestStatus, reason, notes *string, at time.Time) (*types.VerificationRequest, error) {
	ctx, span := dbSpan(ctx, "Review", "verification_requests")
	defer span.End()

	l := r.logger.With(slog.String("method", "Review"), slog.String("request_id", requestID.String()))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanRequest(tx.QueryRow(ctx, `
        SELECT `+requestColumns+` FROM verification_requests WHERE id = $1 FOR UPDATE`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("verification request not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("database error loading verification request: %w", err)
	}
	if !current.Status.Reviewable() {
		return nil, fmt.Errorf("request is %s and cannot be reviewed: %w", current.Status, types.ErrConflict)
	}
	if decision == types.RequestVerified && !current.Role.Onboardable() {
		return nil, fmt.Errorf("request role %q cannot be granted: %w", current.Role, types.ErrConflict)
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
        UPDATE verification_requests
        SET status = $2, rejection_reason = $3, reviewed_at = $4, reviewed_by = $5, updated_at = $4
        WHERE id = $1
        RETURNING `+requestColumns, requestID, string(decision), reason, at, adminID))
	if err != nil {
		l.ErrorContext(ctx, "Failed to update verification request", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error updating verification request: %w", err)
	}

	if decision == types.RequestVerified {
		tag, err := tx.Exec(ctx, `
            UPDATE profiles
            SET role = $2, verified = true, verification_notes = COALESCE($3, verification_notes), updated_at = $4
            WHERE user_id = $1`, current.UserID, string(current.Role), notes, at)
		if err != nil {
			l.ErrorContext(ctx, "Failed to update profile after approval", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error updating profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("profile not found: %w", types.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}
	l.InfoContext(ctx, "Verification request reviewed", slog.String("decision", string(decision)))
	span.SetStatus(codes.Ok, "Request reviewed")
	return updated, nil
}
