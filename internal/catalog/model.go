package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/enum"
)

// MenuItem is a sellable item. Read-only from the engine's perspective.
type MenuItem struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	BasePrice   decimal.Decimal `json:"base_price"`
	HasVariants bool            `json:"has_variants"`
	IsActive    bool            `json:"is_active"`
}

// Deal is a fixed-price bundle of menu items.
type Deal struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	IsActive  bool            `json:"is_active"`
}

// DealMember links a deal to one of its bundled menu items.
type DealMember struct {
	ID         uuid.UUID `json:"id"`
	DealID     uuid.UUID `json:"deal_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	SortOrder  int32     `json:"sort_order"`
}

// Variant is a customizable attribute (e.g. Size, Flavor).
type Variant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// VariantBinding attaches a variant to a menu item or deal (the owner) and
// carries the selection rules. An empty AllowedOptionIDs set means every
// option of the variant is allowed.
type VariantBinding struct {
	ID               uuid.UUID          `json:"id"`
	OwnerID          uuid.UUID          `json:"owner_id"`
	VariantID        uuid.UUID          `json:"variant_id"`
	IsRequired       bool               `json:"is_required"`
	Mode             enum.SelectionMode `json:"mode"`
	AllowedOptionIDs []uuid.UUID        `json:"allowed_option_ids,omitempty"`
	SortOrder        int32              `json:"sort_order"`
}

// VariantOption is one concrete choice for a variant, carrying a signed
// price modifier.
type VariantOption struct {
	ID            uuid.UUID       `json:"id"`
	VariantID     uuid.UUID       `json:"variant_id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	IsActive      bool            `json:"is_active"`
}

// SelectedOption is a chosen option snapshot on an order line. The name and
// modifier are copied at selection time so the line stays stable even if the
// catalog changes afterwards.
type SelectedOption struct {
	OptionID      uuid.UUID       `json:"option_id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// VariantSelection is the runtime selection for one variant on an order line
// or deal-member unit. Single mode holds exactly one option when resolved;
// multiple holds zero or more; all holds the full allowed/active set.
type VariantSelection struct {
	VariantID   uuid.UUID          `json:"variant_id"`
	VariantName string             `json:"variant_name"`
	Mode        enum.SelectionMode `json:"mode"`
	Options     []SelectedOption   `json:"options"`
}

// ModifierTotal sums the price modifiers of every selected option across all
// selections.
func ModifierTotal(selections []VariantSelection) decimal.Decimal {
	total := decimal.Zero
	for _, sel := range selections {
		for _, opt := range sel.Options {
			total = total.Add(opt.PriceModifier)
		}
	}
	return total
}
