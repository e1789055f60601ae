package onboarding

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type OnboardingHandler struct {
	service OnboardingService
	logger  *slog.Logger
}

func NewOnboardingHandler(service OnboardingService, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		service: service,
		logger:  logger,
	}
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("OnboardingHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

// GetProgress godoc
// @Summary      Onboarding progress
// @Description  Merged view of every saved step. currentStep is the furthest step reached and completedSteps the union across steps.
// @Tags         Onboarding
// @Produce      json
// @Success      200 {object} types.Progress
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /onboarding/progress [get]
func (h *OnboardingHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GetProgress", "/api/onboarding/progress")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	progress, err := h.service.GetProgress(r.Context(), userID)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch progress")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, progress)
}

// SubmitStep godoc
// @Summary      Save an onboarding step
// @Description  Upserts the row for (user, step). Under a core freeze or dry-run mode the data is validated and not stored.
// @Tags         Onboarding
// @Accept       json
// @Produce      json
// @Param        body body types.SubmitStepRequest true "Step payload"
// @Success      200 {object} types.WriteResult
// @Failure      400 {object} types.Response "Invalid step data"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /onboarding/progress [post]
func (h *OnboardingHandler) SubmitStep(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SubmitStep", "/api/onboarding/progress")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.SubmitStepRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateWith(&req, "Invalid step data", nil); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int("onboarding.step", req.Step))

	res, err := h.service.SubmitStep(r.Context(), userID, req)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to save progress")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// SaveBrandDetails godoc
// @Summary      Save brand details
// @Tags         Onboarding
// @Accept       json
// @Produce      json
// @Param        body body types.BrandDetailsRequest true "Brand details"
// @Success      200 {object} types.WriteResult
// @Failure      400 {object} types.Response "Invalid brand data"
// @Failure      403 {object} types.Response "Supplier access required"
// @Failure      503 {object} types.Response "Brand persistence disabled"
// @Security     BearerAuth
// @Router       /onboarding/brand [post]
func (h *OnboardingHandler) SaveBrandDetails(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SaveBrandDetails", "/api/onboarding/brand")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.BrandDetailsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.SaveBrandDetails(r.Context(), userID, req.BrandDetails)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to save brand details")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// SavePayoutDetails godoc
// @Summary      Save influencer payout details
// @Description  Financial fields are encrypted before storage.
// @Tags         Onboarding
// @Accept       json
// @Produce      json
// @Param        body body types.PayoutDetailsRequest true "Payout details"
// @Success      200 {object} types.WriteResult
// @Failure      400 {object} types.Response "Invalid input data"
// @Failure      403 {object} types.Response "Influencer access required"
// @Security     BearerAuth
// @Router       /onboarding/influencer [post]
func (h *OnboardingHandler) SavePayoutDetails(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SavePayoutDetails", "/api/onboarding/influencer")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.PayoutDetailsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.SavePayoutDetails(r.Context(), userID, req)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to save payout details")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// Submit godoc
// @Summary      Finalise onboarding
// @Description  Checks the required documents for the role, sets the profile role and returns the dashboard to land on.
// @Tags         Onboarding
// @Accept       json
// @Produce      json
// @Param        body body types.SubmitOnboardingRequest true "Onboarding role"
// @Success      200 {object} types.SubmitOnboardingResponse
// @Failure      400 {object} types.Response "Missing documents or invalid role"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /onboarding/submit [post]
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Submit", "/api/onboarding/submit")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.SubmitOnboardingRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.Submit(r.Context(), userID, req.Role)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to submit onboarding")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// CheckHandle godoc
// @Summary      Display name availability
// @Tags         Onboarding
// @Accept       json
// @Produce      json
// @Param        body body types.CheckHandleRequest true "Display name"
// @Success      200 {object} types.CheckHandleResponse
// @Failure      400 {object} types.Response "Too short"
// @Security     BearerAuth
// @Router       /onboarding/check-handle [post]
func (h *OnboardingHandler) CheckHandle(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "CheckHandle", "/api/onboarding/check-handle")
	defer span.End()

	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req types.CheckHandleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.CheckHandle(r.Context(), userID, req.DisplayName)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to check availability")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}
