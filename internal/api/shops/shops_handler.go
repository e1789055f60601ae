package shops

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/authz"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type ShopHandler struct {
	service ShopService
	logger  *slog.Logger
}

func NewShopHandler(service ShopService, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{
		service: service,
		logger:  logger,
	}
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("ShopHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

// owner returns the influencer the request acts for and the product in the
// path when one is expected. It writes the error response itself.
func owner(w http.ResponseWriter, r *http.Request, withProduct bool) (*types.Profile, uuid.UUID, bool) {
	caller, ok := authz.ProfileFrom(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return nil, uuid.Nil, false
	}
	if !withProduct {
		return caller, uuid.Nil, true
	}
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return nil, uuid.Nil, false
	}
	return caller, id, true
}

// List godoc
// @Summary      List my shop
// @Description  Products curated into the caller's shop, newest first
// @Tags         Shop
// @Produce      json
// @Success      200 {object} types.ShopResponse
// @Failure      403 {object} types.Response "Influencer access required"
// @Security     BearerAuth
// @Router       /influencer/shop [get]
func (h *ShopHandler) List(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "List", "/api/influencer/shop")
	defer span.End()

	caller, _, ok := owner(w, r, false)
	if !ok {
		return
	}
	resp, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch shop")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Add godoc
// @Summary      Add a product to my shop
// @Tags         Shop
// @Accept       json
// @Produce      json
// @Param        body body types.AddShopItemRequest true "Product to add"
// @Success      201 {object} types.ShopItem
// @Failure      400 {object} types.Response "Invalid shop item"
// @Failure      404 {object} types.Response "Product not found or inactive"
// @Failure      409 {object} types.Response "Product already in your shop"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /influencer/shop [post]
func (h *ShopHandler) Add(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Add", "/api/influencer/shop")
	defer span.End()

	caller, _, ok := owner(w, r, false)
	if !ok {
		return
	}
	var req types.AddShopItemRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.service.Add(r.Context(), caller.UserID, req)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to add product to shop")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, item)
}

// Update godoc
// @Summary      Change a shop item
// @Description  Only the fields present are changed.
// @Tags         Shop
// @Accept       json
// @Param        productId path string true "Product ID"
// @Param        body body types.UpdateShopItemRequest true "Overrides"
// @Success      204
// @Failure      400 {object} types.Response "Invalid shop item"
// @Failure      404 {object} types.Response "Product is not in your shop"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /influencer/shop/{productId} [put]
func (h *ShopHandler) Update(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Update", "/api/influencer/shop/{productId}")
	defer span.End()

	caller, productID, ok := owner(w, r, true)
	if !ok {
		return
	}
	var req types.UpdateShopItemRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Update(r.Context(), caller.UserID, productID, req); err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to update shop item")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// Remove godoc
// @Summary      Remove a product from my shop
// @Tags         Shop
// @Param        productId path string true "Product ID"
// @Success      204
// @Failure      404 {object} types.Response "Product is not in your shop"
// @Failure      423 {object} types.Response "Shop writes frozen"
// @Security     BearerAuth
// @Router       /influencer/shop/{productId} [delete]
func (h *ShopHandler) Remove(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Remove", "/api/influencer/shop/{productId}")
	defer span.End()

	caller, productID, ok := owner(w, r, true)
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), caller.UserID, productID); err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to remove product from shop")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// Storefront godoc
// @Summary      Public shop
// @Description  Published items of an influencer shop, looked up by handle
// @Tags         Shop
// @Produce      json
// @Param        handle path string true "Influencer handle"
// @Success      200 {object} types.Storefront
// @Failure      404 {object} types.Response "Shop not found"
// @Router       /shop/{handle} [get]
func (h *ShopHandler) Storefront(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Storefront", "/api/shop/{handle}")
	defer span.End()

	sf, err := h.service.Storefront(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Failed to fetch shop")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sf)
}
