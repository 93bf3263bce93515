// Package pricing computes order totals. Shipping is a step function of
// the whole-cart subtotal, evaluated fresh on every computation; it is
// never cached per line.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

// Fixed business rules. Flagged as configuration candidates, not
// generalized into a scheme.
var (
	// FreeShippingThreshold is the subtotal at or above which the flat
	// shipping fee is waived.
	FreeShippingThreshold = decimal.NewFromInt(150)
	// FlatShippingFee is charged once per order, independent of the
	// number of lines or units.
	FlatShippingFee = decimal.NewFromInt(10)
)

// Totals is the derived cost breakdown for a cart. All values are exact
// decimals; rounding to two places happens only at presentation time.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

// ComputeTotals rolls the cart's lines up into subtotal, shipping fee,
// and total. Line order is irrelevant. Deterministic and idempotent.
func ComputeTotals(lines []models.CartLine) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	shipping := decimal.Zero
	if len(lines) > 0 && subtotal.LessThan(FreeShippingThreshold) {
		shipping = FlatShippingFee
	}

	return Totals{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Total:       subtotal.Add(shipping),
	}
}
