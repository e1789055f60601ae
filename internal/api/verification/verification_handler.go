package verification

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type VerificationHandler struct {
	service VerificationService
	logger  *slog.Logger
}

func NewVerificationHandler(service VerificationService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		logger:  logger,
	}
}

// SendVerification godoc
// @Summary      Send an email verification code
// @Description  Issues a fresh six digit code valid for five minutes. Any previous code stops working.
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body body types.SendCodeRequest true "Email to verify"
// @Success      200 {object} types.SendCodeResponse
// @Failure      400 {object} types.Response "Bad Request"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      429 {object} types.Response "Requested too soon"
// @Failure      502 {object} types.Response "Email delivery failed"
// @Failure      503 {object} types.Response "Core writes frozen"
// @Security     BearerAuth
// @Router       /auth/send-verification [post]
func (h *VerificationHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("VerificationHandler").Start(r.Context(), "SendVerification", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/send-verification"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.SendCodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateWith(&req, "Invalid email", nil); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}

	resp, err := h.service.SendCode(ctx, userID, req.Email)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to send verification code")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// VerifyEmail godoc
// @Summary      Verify an email code
// @Description  Wrong codes return attemptsLeft. After five wrong codes a new code must be requested.
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body body types.VerifyCodeRequest true "Email and code"
// @Success      200 {object} types.VerifyCodeResponse
// @Failure      400 {object} types.Response "Invalid code"
// @Failure      404 {object} types.Response "No code issued"
// @Failure      410 {object} types.Response "Code expired"
// @Failure      429 {object} types.Response "Too many attempts"
// @Failure      503 {object} types.Response "Core writes frozen"
// @Security     BearerAuth
// @Router       /auth/verify-email [post]
func (h *VerificationHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("VerificationHandler").Start(r.Context(), "VerifyEmail", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/verify-email"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.VerifyCodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateWith(&req, "Invalid verification request", nil); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}

	resp, err := h.service.VerifyCode(ctx, userID, req.Email, req.Code)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to verify email")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// VerificationStatus godoc
// @Summary      Email verification status
// @Tags         Verification
// @Produce      json
// @Success      200 {object} types.VerificationStatus
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      404 {object} types.Response "Profile not found"
// @Security     BearerAuth
// @Router       /auth/verification-status [get]
func (h *VerificationHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("VerificationHandler").Start(r.Context(), "VerificationStatus", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/verification-status"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	st, err := h.service.Status(ctx, userID)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to load verification status")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, st)
}
