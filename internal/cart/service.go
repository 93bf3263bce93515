// Package cart manages per-user cart state. Lines always carry a
// quantity of at least one; setting a line to zero removes it.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pricing"
)

var (
	ErrProductUnavailable = errors.New("product is not available")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

// Store is the cart's persistence. Implemented by pgstore.Client.
type Store interface {
	GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	UpsertCartLine(ctx context.Context, userID string, line models.CartLine) error
	SetCartLineQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveCartLine(ctx context.Context, userID, productID string) error
}

// Catalog is the product collaborator: the cart only reads products by
// explicit id, never by predicate.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// Service handles cart operations for authenticated users.
type Service struct {
	store   Store
	catalog Catalog
}

// NewService creates a new cart service
func NewService(store Store, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// View is a cart with its freshly computed totals. Totals are derived
// on every read, never stored.
type View struct {
	Lines  []models.CartLine `json:"lines"`
	Totals pricing.Totals    `json:"totals"`
}

// Get returns the user's cart with totals.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	lines, err := s.store.GetCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &View{Lines: lines, Totals: pricing.ComputeTotals(lines)}, nil
}

// AddProduct adds quantity units of a product to the cart, denormalizing
// name, image, and unit price from the catalog for display.
func (s *Service) AddProduct(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.InStock || product.IsSoldOut {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	line := models.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		ImageURL:  product.ImageURL,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
	if err := s.store.UpsertCartLine(ctx, userID, line); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetQuantity updates a line's quantity. Zero or less removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if err := s.store.SetCartLineQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// RemoveProduct deletes a line from the cart.
func (s *Service) RemoveProduct(ctx context.Context, userID, productID string) (*View, error) {
	if err := s.store.RemoveCartLine(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}
