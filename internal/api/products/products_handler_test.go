package products

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/api/authz"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, filter types.ProductFilter) (*types.ProductListResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProductListResponse), args.Error(1)
}

func (m *MockProductService) Get(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, caller *types.Profile, in types.ProductInput) (*types.Product, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, caller *types.Profile, id uuid.UUID, in types.ProductInput) (*types.Product, error) {
	args := m.Called(ctx, caller, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, caller *types.Profile, id uuid.UUID) error {
	return m.Called(ctx, caller, id).Error(0)
}

type stubProfiles map[uuid.UUID]*types.Profile

func (s stubProfiles) GetProfile(_ context.Context, id uuid.UUID) (*types.Profile, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, types.ErrNotFound
}

// guarded wraps h the way the router does for catalog writes.
func guarded(profiles stubProfiles, h http.HandlerFunc) http.Handler {
	g := authz.NewGuard(profiles, slog.Default())
	return g.RequireRole(types.RoleSupplier, types.RoleAdmin)(h)
}

func withProductID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func as(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), id.String(), "shop@example.com"))
}

func TestListHandlerQuery(t *testing.T) {
	supplierID := uuid.New()
	svc := new(MockProductService)
	svc.On("List", mock.Anything, types.ProductFilter{Page: 2, Limit: 5, SupplierID: &supplierID, Search: "mug"}).
		Return(&types.ProductListResponse{Products: []types.Product{}}, nil)
	h := NewProductHandler(svc, slog.Default())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/products?page=2&limit=5&search=mug&supplier="+supplierID.String(), nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/products?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateHandlerRoles(t *testing.T) {
	supplier := &types.Profile{UserID: uuid.New(), Role: types.RoleSupplier}
	influencer := &types.Profile{UserID: uuid.New(), Role: types.RoleInfluencer}
	profiles := stubProfiles{supplier.UserID: supplier, influencer.UserID: influencer}

	svc := new(MockProductService)
	svc.On("Create", mock.Anything, supplier, types.ProductInput{Title: "Mug", PriceCents: 900}).
		Return(&types.Product{ID: uuid.New(), SupplierID: supplier.UserID, Title: "Mug"}, nil)
	h := guarded(profiles, NewProductHandler(svc, slog.Default()).Create)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"anonymous", httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"title":"Mug","price_cents":900}`)), http.StatusUnauthorized},
		{"influencer", as(httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"title":"Mug","price_cents":900}`)), influencer.UserID), http.StatusForbidden},
		{"supplier", as(httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"title":"Mug","price_cents":900}`)), supplier.UserID), http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, tc.req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestUpdateHandlerNotOwner(t *testing.T) {
	supplier := &types.Profile{UserID: uuid.New(), Role: types.RoleSupplier}
	id := uuid.New()
	svc := new(MockProductService)
	svc.On("Update", mock.Anything, supplier, id, types.ProductInput{Title: "Mug"}).Return(nil, types.ErrForbidden)
	h := guarded(stubProfiles{supplier.UserID: supplier}, NewProductHandler(svc, slog.Default()).Update)

	req := httptest.NewRequest(http.MethodPut, "/api/products/"+id.String(), bytes.NewBufferString(`{"title":"Mug"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withProductID(as(req, supplier.UserID), id.String()))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDeleteHandler(t *testing.T) {
	supplier := &types.Profile{UserID: uuid.New(), Role: types.RoleSupplier}
	id := uuid.New()
	svc := new(MockProductService)
	svc.On("Delete", mock.Anything, supplier, id).Return(nil)
	h := guarded(stubProfiles{supplier.UserID: supplier}, NewProductHandler(svc, slog.Default()).Delete)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withProductID(as(httptest.NewRequest(http.MethodDelete, "/api/products/"+id.String(), nil), supplier.UserID), id.String()))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withProductID(as(httptest.NewRequest(http.MethodDelete, "/api/products/x", nil), supplier.UserID), "x"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetHandlerNotFound(t *testing.T) {
	id := uuid.New()
	svc := new(MockProductService)
	svc.On("Get", mock.Anything, id).Return(nil, types.ErrNotFound)
	h := NewProductHandler(svc, slog.Default())

	rr := httptest.NewRecorder()
	h.Get(rr, withProductID(httptest.NewRequest(http.MethodGet, "/api/products/"+id.String(), nil), id.String()))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
