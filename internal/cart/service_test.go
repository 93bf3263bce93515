package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pgstore"
)

type fakeCartStore struct {
	lines map[string][]models.CartLine // userID -> lines
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{lines: make(map[string][]models.CartLine)}
}

func (f *fakeCartStore) GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	return f.lines[userID], nil
}

func (f *fakeCartStore) UpsertCartLine(ctx context.Context, userID string, line models.CartLine) error {
	for i, existing := range f.lines[userID] {
		if existing.ProductID == line.ProductID {
			f.lines[userID][i].Quantity += line.Quantity
			return nil
		}
	}
	f.lines[userID] = append(f.lines[userID], line)
	return nil
}

func (f *fakeCartStore) SetCartLineQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return f.RemoveCartLine(ctx, userID, productID)
	}
	for i, existing := range f.lines[userID] {
		if existing.ProductID == productID {
			f.lines[userID][i].Quantity = quantity
		}
	}
	return nil
}

func (f *fakeCartStore) RemoveCartLine(ctx context.Context, userID, productID string) error {
	kept := f.lines[userID][:0]
	for _, existing := range f.lines[userID] {
		if existing.ProductID != productID {
			kept = append(kept, existing)
		}
	}
	f.lines[userID] = kept
	return nil
}

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

func catalogWith(products ...*models.Product) *fakeCatalog {
	f := &fakeCatalog{products: make(map[string]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func product(id, price string) *models.Product {
	return &models.Product{
		ID:      id,
		Name:    "Product " + id,
		Price:   decimal.RequireFromString(price),
		InStock: true,
	}
}

func TestService_AddProduct(t *testing.T) {
	svc := NewService(newFakeCartStore(), catalogWith(product("p1", "50")))

	view, err := svc.AddProduct(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Product p1", view.Lines[0].Name, "display fields denormalized from catalog")
	assert.Equal(t, 1, view.Lines[0].Quantity)

	// Totals come back freshly computed: 50 subtotal + 10 flat shipping.
	assert.True(t, view.Totals.Subtotal.Equal(decimal.NewFromInt(50)))
	assert.True(t, view.Totals.ShippingFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, view.Totals.Total.Equal(decimal.NewFromInt(60)))
}

func TestService_AddProduct_MergesQuantity(t *testing.T) {
	svc := NewService(newFakeCartStore(), catalogWith(product("p1", "80")))

	_, err := svc.AddProduct(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	view, err := svc.AddProduct(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestService_AddProduct_Validation(t *testing.T) {
	soldOut := product("gone", "10")
	soldOut.IsSoldOut = true
	soldOut.InStock = false
	svc := NewService(newFakeCartStore(), catalogWith(soldOut))

	_, err := svc.AddProduct(context.Background(), "u1", "gone", 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.AddProduct(context.Background(), "u1", "missing", 1)
	assert.ErrorIs(t, err, pgstore.ErrProductNotFound)

	_, err = svc.AddProduct(context.Background(), "u1", "gone", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestService_SetQuantity_ZeroRemovesLine(t *testing.T) {
	svc := NewService(newFakeCartStore(), catalogWith(product("p1", "80"), product("p2", "80")))

	_, err := svc.AddProduct(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), "u1", "p2", 1)
	require.NoError(t, err)

	// Two lines of 80 clear the free-shipping threshold.
	view, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, view.Totals.ShippingFee.IsZero())

	// Dropping a line to zero removes it; a zero-quantity line is never
	// stored. Shipping reappears because the subtotal fell below 150.
	view, err = svc.SetQuantity(context.Background(), "u1", "p2", 0)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "p1", view.Lines[0].ProductID)
	assert.True(t, view.Totals.ShippingFee.Equal(decimal.NewFromInt(10)))
}

func TestService_RemoveProduct(t *testing.T) {
	svc := NewService(newFakeCartStore(), catalogWith(product("p1", "25")))

	_, err := svc.AddProduct(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)

	view, err := svc.RemoveProduct(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Totals.Total.IsZero())
}
