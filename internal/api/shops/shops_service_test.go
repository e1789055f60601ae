package shops

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

type MockShopRepo struct {
	mock.Mock
}

func (m *MockShopRepo) ListItems(ctx context.Context, influencerID uuid.UUID, publishedOnly bool) ([]types.ShopItem, error) {
	args := m.Called(ctx, influencerID, publishedOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ShopItem), args.Error(1)
}

func (m *MockShopRepo) AddItem(ctx context.Context, influencerID uuid.UUID, item types.ShopItem) error {
	return m.Called(ctx, influencerID, item).Error(0)
}

func (m *MockShopRepo) UpdateItem(ctx context.Context, influencerID, productID uuid.UUID, req types.UpdateShopItemRequest, at time.Time) error {
	return m.Called(ctx, influencerID, productID, req, at).Error(0)
}

func (m *MockShopRepo) RemoveItem(ctx context.Context, influencerID, productID uuid.UUID) error {
	return m.Called(ctx, influencerID, productID).Error(0)
}

func (m *MockShopRepo) FindInfluencerByHandle(ctx context.Context, handle string) (*types.Storefront, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Storefront), args.Error(1)
}

type MockProductReader struct {
	mock.Mock
}

func (m *MockProductReader) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Product), args.Error(1)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*ShopServiceImpl, *MockShopRepo, *MockProductReader) {
	repo := new(MockShopRepo)
	products := new(MockProductReader)
	svc := NewShopService(repo, products, slog.Default())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, products
}

func TestAddToShop(t *testing.T) {
	ctx := context.Background()
	influencerID := uuid.New()
	product := &types.Product{ID: uuid.New(), Title: "Mug", PriceCents: 900, StockCount: 3, Active: true}

	t.Run("sale price defaults to catalog price", func(t *testing.T) {
		svc, repo, products := newTestService()
		products.On("GetProduct", mock.Anything, product.ID).Return(product, nil).Once()
		repo.On("AddItem", mock.Anything, influencerID, mock.MatchedBy(func(it types.ShopItem) bool {
			return it.ProductID == product.ID && it.SalePriceCents == 900 && it.Published && it.AddedAt.Equal(fixedNow)
		})).Return(nil).Once()

		item, err := svc.Add(ctx, influencerID, types.AddShopItemRequest{ProductID: product.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, int64(900), item.BasePriceCents)
		assert.True(t, item.InStock)
		assert.Nil(t, item.CustomTitle)
		repo.AssertExpectations(t)
	})

	t.Run("overrides are kept", func(t *testing.T) {
		svc, repo, products := newTestService()
		title, price := "  Daily mug ", int64(1500)
		products.On("GetProduct", mock.Anything, product.ID).Return(product, nil).Once()
		repo.On("AddItem", mock.Anything, influencerID, mock.Anything).Return(nil).Once()

		item, err := svc.Add(ctx, influencerID, types.AddShopItemRequest{ProductID: product.ID.String(), CustomTitle: &title, SalePriceCents: &price})
		require.NoError(t, err)
		assert.Equal(t, "Daily mug", *item.CustomTitle)
		assert.Equal(t, int64(1500), item.SalePriceCents)
	})

	t.Run("inactive product", func(t *testing.T) {
		svc, repo, products := newTestService()
		inactive := *product
		inactive.Active = false
		products.On("GetProduct", mock.Anything, product.ID).Return(&inactive, nil).Once()

		_, err := svc.Add(ctx, influencerID, types.AddShopItemRequest{ProductID: product.ID.String()})
		assert.ErrorIs(t, err, types.ErrNotFound)
		repo.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already in shop", func(t *testing.T) {
		svc, repo, products := newTestService()
		products.On("GetProduct", mock.Anything, product.ID).Return(product, nil).Once()
		repo.On("AddItem", mock.Anything, influencerID, mock.Anything).Return(types.ErrConflict).Once()

		_, err := svc.Add(ctx, influencerID, types.AddShopItemRequest{ProductID: product.ID.String()})
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("bad input", func(t *testing.T) {
		svc, _, products := newTestService()
		negative := int64(-1)

		_, err := svc.Add(ctx, influencerID, types.AddShopItemRequest{ProductID: "nope", SalePriceCents: &negative})
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "product_id")
		assert.Contains(t, verr.Fields, "sale_price_cents")
		products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})
}

func TestUpdateAndRemoveShopItem(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	influencerID, productID := uuid.New(), uuid.New()
	blank := "   "
	published := false

	repo.On("UpdateItem", mock.Anything, influencerID, productID,
		types.UpdateShopItemRequest{Published: &published}, fixedNow).Return(nil).Once()
	require.NoError(t, svc.Update(ctx, influencerID, productID, types.UpdateShopItemRequest{CustomTitle: &blank, Published: &published}))

	repo.On("RemoveItem", mock.Anything, influencerID, productID).Return(types.ErrNotFound).Once()
	assert.ErrorIs(t, svc.Remove(ctx, influencerID, productID), types.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestStorefrontListsPublishedItems(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	id := uuid.New()

	repo.On("FindInfluencerByHandle", mock.Anything, "janespicks").
		Return(&types.Storefront{InfluencerID: id, Handle: "janespicks"}, nil).Once()
	repo.On("ListItems", mock.Anything, id, true).Return([]types.ShopItem{{Title: "Mug", Published: true}}, nil).Once()

	sf, err := svc.Storefront(ctx, " janespicks ")
	require.NoError(t, err)
	assert.Len(t, sf.Items, 1)

	_, err = svc.Storefront(ctx, "")
	assert.ErrorIs(t, err, types.ErrNotFound)

	repo.On("FindInfluencerByHandle", mock.Anything, "broken").Return(nil, errors.New("db down")).Once()
	_, err = svc.Storefront(ctx, "broken")
	assert.Error(t, err)
}
