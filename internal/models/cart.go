package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product entry in a user's cart. Name and ImageURL are
// denormalized from the catalog for display. A line always has
// Quantity >= 1; dropping a line's quantity to zero removes the row.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}
