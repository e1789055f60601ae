package profiles

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ProfileHandler struct {
	service ProfileService
	logger  *slog.Logger
}

func NewProfileHandler(service ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger,
	}
}

// Me godoc
// @Summary      Current user
// @Description  Returns the caller's profile and the landing page for their role
// @Tags         Profiles
// @Produce      json
// @Success      200 {object} types.MeResponse
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      404 {object} types.Response "Profile not found"
// @Security     BearerAuth
// @Router       /me [get]
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "Me", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/me"),
	))
	defer span.End()

	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	me, err := h.service.Me(ctx, userID)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to load profile")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, me)
}

// parseUserFilter reads ?page&limit&role&verified&search. Any malformed
// parameter is a validation error.
func parseUserFilter(q url.Values) (types.UserFilter, error) {
	f := types.UserFilter{Page: 1, Limit: defaultPageLimit, Search: strings.TrimSpace(q.Get("search"))}
	fields := types.FieldErrors{}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["page"] = "must be a positive integer"
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			fields["limit"] = "must be between 1 and 100"
		}
		f.Limit = n
	}
	if v := q.Get("role"); v != "" {
		if role, err := types.ParseRole(v); err == nil {
			f.Role = &role
		} else {
			fields["role"] = "must be one of admin, supplier, influencer, customer"
		}
	}
	if v := q.Get("verified"); v != "" {
		if verified, err := strconv.ParseBool(v); err == nil {
			f.Verified = &verified
		} else {
			fields["verified"] = "must be true or false"
		}
	}
	if len(fields) > 0 {
		return f, types.NewValidationError("Invalid query parameters", fields)
	}
	return f, nil
}

// ListUsers godoc
// @Summary      List users
// @Description  Paginated user listing for admins, newest first
// @Tags         Admin
// @Produce      json
// @Param        page query int false "Page, from 1" default(1)
// @Param        limit query int false "Page size, 1-100" default(20)
// @Param        role query string false "Role filter" Enums(admin, supplier, influencer, customer)
// @Param        verified query bool false "Verified filter"
// @Param        search query string false "Matches email or name"
// @Success      200 {object} types.UserListResponse
// @Failure      400 {object} types.Response "Invalid query parameters"
// @Failure      403 {object} types.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/users [get]
func (h *ProfileHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "ListUsers", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/admin/users"),
	))
	defer span.End()

	filter, err := parseUserFilter(r.URL.Query())
	if err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}
	resp, err := h.service.ListUsers(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.ServiceErrorResponse(w, r, err, "Failed to fetch users")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func targetUserID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// SetVerified godoc
// @Summary      Verify or unverify a user
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        body body types.SetVerifiedRequest true "Verification flag and optional notes"
// @Success      200 {object} types.Profile
// @Failure      400 {object} types.Response "Bad Request"
// @Failure      404 {object} types.Response "User not found"
// @Failure      423 {object} types.Response "Core writes frozen"
// @Security     BearerAuth
// @Router       /admin/users/{id}/verify [put]
func (h *ProfileHandler) SetVerified(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "SetVerified", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/admin/users/{id}/verify"),
	))
	defer span.End()

	adminID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	userID, ok := targetUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req types.SetVerifiedRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateWith(&req, "Invalid verification data", nil); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}

	p, err := h.service.SetVerified(ctx, adminID, userID, req)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to update user verification")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// SetRole godoc
// @Summary      Change a user's role
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        body body types.SetRoleRequest true "New role"
// @Success      200 {object} types.Profile
// @Failure      400 {object} types.Response "Bad Request"
// @Failure      403 {object} types.Response "Forbidden"
// @Failure      404 {object} types.Response "User not found"
// @Failure      423 {object} types.Response "Core writes frozen"
// @Security     BearerAuth
// @Router       /admin/users/{id}/role [put]
func (h *ProfileHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "SetRole", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/admin/users/{id}/role"),
	))
	defer span.End()

	adminID, err := auth.UserIDFrom(ctx)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	userID, ok := targetUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req types.SetRoleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.Validate(&req); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid role")
		return
	}

	p, err := h.service.SetRole(ctx, adminID, userID, role)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to update role")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// Stats godoc
// @Summary      Platform statistics
// @Description  Counts for the admin dashboard. Counts that fail to load are reported as zero.
// @Tags         Admin
// @Produce      json
// @Success      200 {object} types.PlatformStats
// @Security     BearerAuth
// @Router       /admin/stats [get]
func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "Stats", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/admin/stats"),
	))
	defer span.End()

	api.WriteJSONResponse(w, r, http.StatusOK, h.service.Stats(ctx))
}
