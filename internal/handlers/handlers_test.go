package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfarydz/rydstore-backend/internal/auction"
	"github.com/xfarydz/rydstore-backend/internal/identity"
	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pgstore"
	"github.com/xfarydz/rydstore-backend/internal/redisstore"
)

// itemStore is an in-memory auction.ItemStore backed by the engine's
// own rule evaluation.
type itemStore struct {
	items map[string]*models.AuctionItem
}

func (s *itemStore) PlaceBid(ctx context.Context, itemID string, bid *models.Bid, now time.Time, minIncrement float64) (*redisstore.BidResult, error) {
	item, ok := s.items[itemID]
	if !ok {
		return &redisstore.BidResult{Code: redisstore.BidItemNotFound}, nil
	}
	err := auction.Evaluate(item, bid, now)
	if err == nil {
		prev := item.LeadingBid()
		auction.Apply(item, bid)
		return &redisstore.BidResult{Code: redisstore.BidAccepted, PreviousBid: prev}, nil
	}
	if tooLow, ok := err.(*auction.BidTooLowError); ok {
		return &redisstore.BidResult{Code: redisstore.BidTooLow, MinAcceptable: tooLow.MinAcceptable}, nil
	}
	if err == auction.ErrAuctionNotStarted {
		return &redisstore.BidResult{Code: redisstore.BidNotStarted}, nil
	}
	return &redisstore.BidResult{Code: redisstore.BidEnded, ClosedNow: auction.ExpireIfDue(item, now)}, nil
}

func (s *itemStore) CloseIfDue(ctx context.Context, itemID string, now time.Time) (bool, error) {
	item, ok := s.items[itemID]
	if !ok {
		return false, nil
	}
	return auction.ExpireIfDue(item, now), nil
}

func (s *itemStore) SaveItem(ctx context.Context, item *models.AuctionItem) error {
	s.items[item.ID] = item
	return nil
}

func (s *itemStore) SetItemEndTime(ctx context.Context, itemID string, end, updatedAt time.Time) error {
	if item, ok := s.items[itemID]; ok {
		e := end
		item.EndTime = &e
		item.UpdatedAt = updatedAt
	}
	return nil
}

func (s *itemStore) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	return s.items[itemID], nil
}

func (s *itemStore) ListItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range s.items {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *itemStore) DeleteItem(ctx context.Context, itemID string) error {
	delete(s.items, itemID)
	return nil
}

func (s *itemStore) PublishEvent(ctx context.Context, itemID string, event interface{}) error {
	return nil
}

type noopQueue struct{}

func (noopQueue) Publish(ctx context.Context, subject string, data []byte) error { return nil }

type fakeCatalog struct {
	products map[string]*models.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, pgstore.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	for _, p := range f.products {
		products = append(products, p)
	}
	return products, nil
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, p *models.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeCatalog) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, pgstore.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeCatalog) GetBidHistory(ctx context.Context, itemID string, limit int) ([]*models.Bid, error) {
	return nil, nil
}

func newTestHandler(items ...*models.AuctionItem) *Handler {
	store := &itemStore{items: make(map[string]*models.AuctionItem)}
	for _, item := range items {
		store.items[item.ID] = item
	}
	auctionSvc := auction.NewService(store, noopQueue{})
	catalog := &fakeCatalog{products: make(map[string]*models.Product)}
	return NewHandler(auctionSvc, nil, nil, catalog)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func authHeaders() map[string]string {
	return map[string]string{
		identity.HeaderUserID:    "u1",
		identity.HeaderUserName:  "alice",
		identity.HeaderUserEmail: "alice@example.com",
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestHandler().SetupRoutes()
	rec := doJSON(t, router, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceBid_Accepted(t *testing.T) {
	item := &models.AuctionItem{ID: "item-1", Name: "Jacket", BasePrice: 100}
	router := newTestHandler(item).SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/items/item-1/bid",
		models.BidRequest{Amount: 105}, authHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.BidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, 105.0, resp.CurrentBid)
}

func TestPlaceBid_RejectedTooLow(t *testing.T) {
	item := &models.AuctionItem{ID: "item-1", Name: "Jacket", BasePrice: 100}
	router := newTestHandler(item).SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/items/item-1/bid",
		models.BidRequest{Amount: 104}, authHeaders())
	// Rejections are a normal outcome, reported with 200.
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, 105.0, resp.MinAcceptable)
}

func TestPlaceBid_Anonymous(t *testing.T) {
	item := &models.AuctionItem{ID: "item-1", Name: "Jacket", BasePrice: 100}
	router := newTestHandler(item).SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/items/item-1/bid",
		models.BidRequest{Amount: 105}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, "authentication required", resp.Reason)
}

func TestPlaceBid_Validation(t *testing.T) {
	router := newTestHandler().SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/items/item-1/bid",
		models.BidRequest{Amount: -5}, authHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/items/missing/bid",
		models.BidRequest{Amount: 105}, authHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetItem_NotFound(t *testing.T) {
	router := newTestHandler().SetupRoutes()
	rec := doJSON(t, router, "GET", "/api/v1/items/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartEndpointsRequireIdentity(t *testing.T) {
	router := newTestHandler().SetupRoutes()

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/v1/cart"},
		{"POST", "/api/v1/cart/items"},
		{"PUT", "/api/v1/cart/items/p1"},
		{"DELETE", "/api/v1/cart/items/p1"},
		{"POST", "/api/v1/checkout"},
	} {
		rec := doJSON(t, router, tc.method, tc.path, map[string]string{}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPaymentCallback_IgnoresNonSuccess(t *testing.T) {
	router := newTestHandler().SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/payments/callback",
		map[string]string{"order_id": "o1", "status": "failed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentCallback_RequiresOrderID(t *testing.T) {
	router := newTestHandler().SetupRoutes()

	rec := doJSON(t, router, "POST", "/api/v1/payments/callback",
		map[string]string{"status": "success"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newTestHandler().SetupRoutes()
	rec := doJSON(t, router, "GET", "/api/v1/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
