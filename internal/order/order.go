// Package order holds the order aggregate: the line and order models, the
// total recomputation that is the single source of truth for order-level
// amounts, and the discount engine.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/catalog"
)

// BreakdownEntry is one kitchen-facing sub-item of an expanded deal line.
// Members that carry variants expand to one entry per physical unit, each
// with its own independently-selected variants merged with the deal-level
// selections; members without variants produce a single entry with the full
// member quantity.
type BreakdownEntry struct {
	MenuItemID   uuid.UUID                  `json:"menu_item_id"`
	MenuItemName string                     `json:"menu_item_name"`
	Quantity     int32                      `json:"quantity"`
	Selections   []catalog.VariantSelection `json:"selections,omitempty"`
}

// Line is a priced order line. Selections and Breakdown are created at
// line-add time and replaced wholesale by an edit; they are never patched
// in place.
type Line struct {
	ID         uuid.UUID                  `json:"id"`
	OrderID    uuid.UUID                  `json:"order_id"`
	Kind       string                     `json:"kind"` // enum.LineKindMenuItem or enum.LineKindDeal
	MenuItemID uuid.UUID                  `json:"menu_item_id,omitempty"`
	DealID     uuid.UUID                  `json:"deal_id,omitempty"`
	Name       string                     `json:"name"`
	Quantity   int32                      `json:"quantity"`
	Selections []catalog.VariantSelection `json:"selections,omitempty"`
	UnitPrice  decimal.Decimal            `json:"unit_price"`
	TotalPrice decimal.Decimal            `json:"total_price"`
	Notes      string                     `json:"notes,omitempty"`
	Breakdown  []BreakdownEntry           `json:"breakdown,omitempty"` // deals only
	CreatedAt  time.Time                  `json:"created_at"`
}

// Order is the unit of concurrency: terminals hold independent in-memory
// copies that reconcile against the same server-side record. Lines are held
// by reference and fetched/mutated independently.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	Number            string          `json:"number"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountType      string          `json:"discount_type,omitempty"` // empty = no discount
	DiscountValue     decimal.Decimal `json:"discount_value"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	DiscountReference string          `json:"discount_reference,omitempty"`
	DeliveryCharge    decimal.Decimal `json:"delivery_charge"`
	Total             decimal.Decimal `json:"total"`
	CreatedBy         uuid.UUID       `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
