package products

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/authz"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

func NewProductHandler(service ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("ProductHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

func parseProductFilter(q url.Values) (types.ProductFilter, error) {
	f := types.ProductFilter{Page: 1, Limit: defaultPageLimit, Search: strings.TrimSpace(q.Get("search"))}
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
	if v := q.Get("supplier"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fields["supplier"] = "must be a valid id"
		}
		f.SupplierID = &id
	}
	if len(fields) > 0 {
		return f, types.NewValidationError("Invalid query parameters", fields)
	}
	return f, nil
}

func productID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// List godoc
// @Summary      List products
// @Description  Public catalog of active products, newest first
// @Tags         Products
// @Produce      json
// @Param        page query int false "Page, from 1" default(1)
// @Param        limit query int false "Page size, 1-100" default(20)
// @Param        supplier query string false "Supplier ID"
// @Param        search query string false "Matches the title"
// @Success      200 {object} types.ProductListResponse
// @Failure      400 {object} types.Response "Invalid query parameters"
// @Router       /products [get]
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "List", "/api/products")
	defer span.End()

	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}
	resp, err := h.service.List(r.Context(), filter)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch products")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a product
// @Tags         Products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} types.Product
// @Failure      404 {object} types.Response "Product not found"
// @Router       /products/{id} [get]
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Get", "/api/products/{id}")
	defer span.End()

	id, ok := productID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch product")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// Create godoc
// @Summary      Create a product
// @Tags         Products
// @Accept       json
// @Produce      json
// @Param        body body types.ProductInput true "Product"
// @Success      201 {object} types.Product
// @Failure      400 {object} types.Response "Invalid product"
// @Failure      403 {object} types.Response "Supplier access required"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /products [post]
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Create", "/api/products")
	defer span.End()

	caller, ok := authz.ProfileFrom(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var in types.ProductInput
	if err := api.DecodeJSONBody(w, r, &in); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to create product")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

// Update godoc
// @Summary      Update a product
// @Description  Only the owning supplier or an admin may update a product.
// @Tags         Products
// @Accept       json
// @Produce      json
// @Param        id path string true "Product ID"
// @Param        body body types.ProductInput true "Product"
// @Success      200 {object} types.Product
// @Failure      400 {object} types.Response "Invalid product"
// @Failure      403 {object} types.Response "Not the owner"
// @Failure      404 {object} types.Response "Product not found"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Update", "/api/products/{id}")
	defer span.End()

	caller, ok := authz.ProfileFrom(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := productID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var in types.ProductInput
	if err := api.DecodeJSONBody(w, r, &in); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.Update(r.Context(), caller, id, in)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to update product")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// Delete godoc
// @Summary      Delete a product
// @Tags         Products
// @Param        id path string true "Product ID"
// @Success      204
// @Failure      403 {object} types.Response "Not the owner"
// @Failure      404 {object} types.Response "Product not found"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Delete", "/api/products/{id}")
	defer span.End()

	caller, ok := authz.ProfileFrom(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := productID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to delete product")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
