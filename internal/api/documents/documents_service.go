package documents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/app/storage"
	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	MaxUploadBytes = 10 << 20
	keyPrefix      = "verification-documents"
	maxNameLength  = 100
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var _ DocumentService = (*DocumentServiceImpl)(nil)

type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
}

// Upload is one file received from the client. Size is the size the client
// declared; the stored size is whatever the body yields.
type Upload struct {
	DocType     string
	Role        string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type DocumentService interface {
	Upload(ctx context.Context, userID uuid.UUID, up Upload) (*types.UploadResponse, error)
	List(ctx context.Context, userID uuid.UUID) (*types.DocumentsResponse, error)
	Review(ctx context.Context, adminID, requestID uuid.UUID, req types.ReviewRequest) (*types.VerificationRequest, error)
}

type DocumentServiceImpl struct {
	logger   *slog.Logger
	repo     DocumentRepo
	profiles ProfileReader
	blobs    storage.BlobStore
	flags    freeze.Source
	now      func() time.Time
}

func NewDocumentService(repo DocumentRepo, profiles ProfileReader, blobs storage.BlobStore, flags freeze.Source, logger *slog.Logger) *DocumentServiceImpl {
	return &DocumentServiceImpl{
		logger:   logger,
		repo:     repo,
		profiles: profiles,
		blobs:    blobs,
		flags:    flags,
		now:      time.Now,
	}
}

// SanitizeFileName keeps the base name, replaces anything outside
// [a-zA-Z0-9._-] with '_' and truncates to 100 characters.
func SanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	clean := unsafeName.ReplaceAllString(base, "_")
	if len(clean) > maxNameLength {
		clean = clean[:maxNameLength]
	}
	return clean
}

// StorageKey builds verification-documents/<user>/<type>_<millis>_<name>.
func StorageKey(userID uuid.UUID, docType, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%d_%s", keyPrefix, userID, unsafeName.ReplaceAllString(docType, "_"),
		at.UnixMilli(), SanitizeFileName(fileName))
}

func allowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}

func (s *DocumentServiceImpl) validate(up Upload) error {
	fields := types.FieldErrors{}
	if !types.AllowedDocTypes[up.DocType] {
		fields["documentType"] = "is not an accepted document type"
	}
	if up.Size > MaxUploadBytes {
		fields["file"] = "must be less than 10MB"
	} else if !allowedContentType(up.ContentType) {
		fields["file"] = "only images and PDFs are allowed"
	}
	if len(fields) > 0 {
		msg := "Invalid file"
		if _, ok := fields["documentType"]; ok {
			msg = "Invalid document type"
		}
		return types.NewValidationError(msg, fields)
	}
	return nil
}

func (s *DocumentServiceImpl) requestRole(ctx context.Context, userID uuid.UUID, requested string) (types.Role, error) {
	if requested != "" {
		role, err := types.ParseRole(requested)
		if err != nil || (role != types.RoleSupplier && role != types.RoleInfluencer) {
			return "", types.NewValidationError("Invalid role", types.FieldErrors{"role": "must be brand or influencer"})
		}
		return role, nil
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	if !p.Role.Onboardable() {
		return "", types.NewValidationError("Choose the role you are applying for",
			types.FieldErrors{"role": "must be brand or influencer"})
	}
	return p.Role, nil
}

func (s *DocumentServiceImpl) Upload(ctx context.Context, userID uuid.UUID, up Upload) (*types.UploadResponse, error) {
	ctx, span := otel.Tracer("DocumentService").Start(ctx, "Upload", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("document.type", up.DocType),
		attribute.Int64("document.size", up.Size),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Upload"), slog.String("doc_type", up.DocType))

	if err := s.validate(up); err != nil {
		return nil, err
	}

	// The declared type is client controlled; check the bytes agree.
	br := bufio.NewReaderSize(up.Body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, types.NewValidationError("Invalid file", types.FieldErrors{"file": "is required"})
	}
	if sniffed := http.DetectContentType(head); !allowedContentType(sniffed) {
		l.WarnContext(ctx, "Upload content does not match declared type",
			slog.String("declared", up.ContentType), slog.String("sniffed", sniffed))
		return nil, types.NewValidationError("Invalid file", types.FieldErrors{"file": "only images and PDFs are allowed"})
	}

	role, err := s.requestRole(ctx, userID, up.Role)
	if err != nil {
		return nil, err
	}

	if s.flags.Flags().OnboardingDryRun() {
		metrics.Get().OnboardingDryRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "document")))
		return &types.UploadResponse{
			OK: true, DryRun: true, DocType: up.DocType,
			Message: "Upload validated (dry run, not stored)",
		}, nil
	}

	req, err := s.repo.OpenRequest(ctx, userID, role)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open verification request: %w", err)
	}

	key := StorageKey(userID, up.DocType, up.FileName, s.now())
	counted := &countingReader{r: io.LimitReader(br, MaxUploadBytes+1)}
	if err := s.blobs.Put(ctx, key, counted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Blob write failed")
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if counted.n > MaxUploadBytes {
		s.removeBlob(ctx, key)
		return nil, types.NewValidationError("Invalid file", types.FieldErrors{"file": "must be less than 10MB"})
	}

	doc, err := s.repo.AddDocument(ctx, types.VerificationDocument{
		RequestID:   req.ID,
		DocType:     up.DocType,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		SizeBytes:   counted.n,
		StorageKey:  key,
	})
	if err != nil {
		span.RecordError(err)
		s.removeBlob(ctx, key)
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	l.InfoContext(ctx, "Verification document uploaded", slog.String("request_id", req.ID.String()))
	span.SetStatus(codes.Ok, "Document uploaded")
	return &types.UploadResponse{
		OK: true, Persisted: true, DocType: up.DocType, Document: doc,
		Message: "Document uploaded successfully",
	}, nil
}

func (s *DocumentServiceImpl) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "Failed to remove orphaned document", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *DocumentServiceImpl) List(ctx context.Context, userID uuid.UUID) (*types.DocumentsResponse, error) {
	ctx, span := otel.Tracer("DocumentService").Start(ctx, "List")
	defer span.End()

	req, err := s.repo.LatestRequest(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &types.DocumentsResponse{Documents: []types.VerificationDocument{}}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load verification request: %w", err)
	}
	docs, err := s.repo.ListDocuments(ctx, req.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return &types.DocumentsResponse{Request: req, Documents: docs}, nil
}

func (s *DocumentServiceImpl) Review(ctx context.Context, adminID, requestID uuid.UUID, req types.ReviewRequest) (*types.VerificationRequest, error) {
	ctx, span := otel.Tracer("DocumentService").Start(ctx, "Review", trace.WithAttributes(
		attribute.String("request.id", requestID.String()),
		attribute.String("review.status", req.Status),
	))
	defer span.End()

	if err := api.ValidateWith(&req, "Invalid review", nil); err != nil {
		return nil, err
	}

	var reason, notes *string
	if r := strings.TrimSpace(req.RejectionReason); r != "" && req.Status == string(types.RequestRejected) {
		reason = &r
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		notes = &n
	}

	out, err := s.repo.Review(ctx, requestID, adminID, types.RequestStatus(req.Status), reason, notes, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to review request: %w", err)
	}
	s.logger.InfoContext(ctx, "Verification request reviewed",
		slog.String("request_id", requestID.String()),
		slog.String("admin_id", adminID.String()),
		slog.String("status", req.Status))
	return out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
