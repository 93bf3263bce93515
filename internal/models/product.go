package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a fixed-price catalog item. The checkout core only ever
// touches products by explicit id sets derived from an order's lines.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	IsSoldOut   bool            `json:"is_sold_out"`
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
	SoldTo      string          `json:"sold_to,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductPatch carries the fields an update may change. Nil means
// "leave unchanged".
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	InStock     *bool            `json:"in_stock,omitempty"`
	IsSoldOut   *bool            `json:"is_sold_out,omitempty"`
}
