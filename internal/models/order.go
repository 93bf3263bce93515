package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus constants
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	// OrderStatusNeedsReconciliation marks an order whose payment was
	// confirmed but whose inventory mutation failed; it must be resolved
	// manually, never silently dropped.
	OrderStatusNeedsReconciliation = "needs_reconciliation"
)

// Order is a snapshot of a cart at checkout time together with the
// totals computed for it. Lines are copied, not referenced, so later
// cart edits cannot change what was priced.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Lines       []CartLine      `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// User is the authenticated identity the engines consume. The core never
// performs authentication itself.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
