package documents

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

// Multipart overhead allowed on top of the file itself.
const formOverhead = 1 << 20

type DocumentHandler struct {
	service DocumentService
	logger  *slog.Logger
}

func NewDocumentHandler(service DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

// Upload godoc
// @Summary      Upload a verification document
// @Description  Accepts images and PDFs up to 10MB. In dry-run mode the file is validated and not stored.
// @Tags         Onboarding
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData file   true  "Document file"
// @Param        documentType formData string true  "Document type"
// @Param        role         formData string false "brand or influencer; defaults to the profile role"
// @Success      200 {object} types.UploadResponse
// @Failure      400 {object} types.Response "Invalid file or document type"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      413 {object} types.Response "File too large"
// @Security     BearerAuth
// @Router       /onboarding/docs [post]
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DocumentHandler").Start(r.Context(), "Upload", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/onboarding/docs"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.ErrorResponse(w, r, http.StatusRequestEntityTooLarge, "File size must be less than 10MB")
			return
		}
		api.ErrorResponse(w, r, http.StatusBadRequest, "Expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	docType := r.FormValue("documentType")
	span.SetAttributes(attribute.String("document.type", docType))

	res, err := h.service.Upload(ctx, userID, Upload{
		DocType:     docType,
		Role:        r.FormValue("role"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		api.ServiceErrorResponse(w, r, err, "Failed to upload document")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// List godoc
// @Summary      List verification documents
// @Description  Returns the caller's latest verification request and its documents.
// @Tags         Onboarding
// @Produce      json
// @Success      200 {object} types.DocumentsResponse
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /onboarding/docs [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DocumentHandler").Start(r.Context(), "List", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/onboarding/docs"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	resp, err := h.service.List(ctx, userID)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch documents")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Review godoc
// @Summary      Review a verification request
// @Description  Approving sets the applicant's role and verified flag. Only submitted or in-review requests can be decided.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        requestId path string true "Verification request ID"
// @Param        body body types.ReviewRequest true "Decision"
// @Success      200 {object} types.VerificationRequest
// @Failure      400 {object} types.Response "Invalid review"
// @Failure      404 {object} types.Response "Request not found"
// @Failure      409 {object} types.Response "Request already decided"
// @Failure      423 {object} types.Response "Core writes frozen"
// @Security     BearerAuth
// @Router       /admin/verification/{requestId}/review [post]
func (h *DocumentHandler) Review(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DocumentHandler").Start(r.Context(), "Review", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/admin/verification/{requestId}/review"),
	))
	defer span.End()

	adminID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request ID")
		return
	}
	var req types.ReviewRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.service.Review(ctx, adminID, requestID, req)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to review request")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, out)
}
