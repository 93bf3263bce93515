package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

func line(price string, quantity int) models.CartLine {
	return models.CartLine{
		ProductID: "p-" + price,
		Name:      "Product " + price,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  quantity,
	}
}

func TestComputeTotals_EmptyCart(t *testing.T) {
	totals := ComputeTotals(nil)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.ShippingFee.IsZero(), "empty cart is never charged shipping")
	assert.True(t, totals.Total.IsZero())
}

func TestComputeTotals_BelowThreshold(t *testing.T) {
	totals := ComputeTotals([]models.CartLine{line("50", 1)})

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(50)))
	assert.True(t, totals.ShippingFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(60)))
}

func TestComputeTotals_AtThreshold(t *testing.T) {
	// Two lines of 80 reach 160, above the 150 threshold: shipping is
	// waived for the whole order.
	totals := ComputeTotals([]models.CartLine{line("80", 1), line("80.00", 1)})

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(160)))
	assert.True(t, totals.ShippingFee.IsZero())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(160)))

	// Exactly 150 also qualifies.
	exact := ComputeTotals([]models.CartLine{line("150", 1)})
	assert.True(t, exact.ShippingFee.IsZero())

	// A cent below does not.
	under := ComputeTotals([]models.CartLine{line("149.99", 1)})
	assert.True(t, under.ShippingFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, under.Total.Equal(decimal.RequireFromString("159.99")))
}

func TestComputeTotals_FlatFeePerOrderNotPerLine(t *testing.T) {
	// Many cheap lines still pay the fee exactly once.
	lines := []models.CartLine{line("1", 3), line("2.50", 4), line("0.99", 1)}
	totals := ComputeTotals(lines)

	require.True(t, totals.Subtotal.Equal(decimal.RequireFromString("13.99")))
	assert.True(t, totals.ShippingFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("23.99")))
}

func TestComputeTotals_NoIntermediateRounding(t *testing.T) {
	// Sub-cent unit prices accumulate exactly; rounding is a display
	// concern only.
	lines := []models.CartLine{line("0.333", 3), line("0.001", 1)}
	totals := ComputeTotals(lines)

	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("1.000")))
}

func TestComputeTotals_Idempotent(t *testing.T) {
	lines := []models.CartLine{line("80", 1), line("45.50", 2)}

	first := ComputeTotals(lines)
	second := ComputeTotals(lines)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.ShippingFee.Equal(second.ShippingFee))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestComputeTotals_OrderIndependent(t *testing.T) {
	forward := []models.CartLine{line("10", 1), line("20", 2), line("30", 3)}
	reversed := []models.CartLine{line("30", 3), line("20", 2), line("10", 1)}

	assert.True(t, ComputeTotals(forward).Total.Equal(ComputeTotals(reversed).Total))
}
