// Package pricing turns confirmed selections into priced order lines. The
// selection state machine gates completeness before anything here runs;
// pricing does not re-validate.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/order"
)

// MemberUnits carries the per-unit selections for one bundle member. For
// members with variant bindings, Units holds one selection set per physical
// unit (len == Member.Quantity); members without bindings leave Units nil.
type MemberUnits struct {
	Member catalog.ResolvedMember
	Units  [][]catalog.VariantSelection
}

// PriceMenuItem computes a menu-item line's prices:
//
//	unitPrice  = basePrice + Σ priceModifier over all selected options
//	totalPrice = unitPrice × quantity, floored at 0
func PriceMenuItem(item catalog.MenuItem, selections []catalog.VariantSelection, quantity int32) (unit, total decimal.Decimal) {
	unit = item.BasePrice.Add(catalog.ModifierTotal(selections))
	total = unit.Mul(decimal.NewFromInt32(quantity))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return unit, total
}

// PriceDeal computes a deal line's prices and its kitchen breakdown. The
// bundle price is flat: only deal-level selections move the unit price.
// Member-level selections are recorded in the breakdown for preparation
// accuracy but never priced.
func PriceDeal(deal catalog.Deal, dealSelections []catalog.VariantSelection, members []MemberUnits, quantity int32) (unit, total decimal.Decimal, breakdown []order.BreakdownEntry) {
	unit = deal.BasePrice.Add(catalog.ModifierTotal(dealSelections))
	total = unit.Mul(decimal.NewFromInt32(quantity))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return unit, total, ExpandBreakdown(dealSelections, members)
}

// ExpandBreakdown expands bundle members into kitchen-facing entries. A
// member with variant bindings produces one entry per physical unit, each
// carrying its own selections merged with the deal-level ones; a member
// without bindings produces a single entry with the full member quantity.
func ExpandBreakdown(dealSelections []catalog.VariantSelection, members []MemberUnits) []order.BreakdownEntry {
	var breakdown []order.BreakdownEntry
	for _, mu := range members {
		m := mu.Member
		if len(m.Bindings) == 0 {
			breakdown = append(breakdown, order.BreakdownEntry{
				MenuItemID:   m.Item.ID,
				MenuItemName: m.Item.Name,
				Quantity:     m.Quantity,
				Selections:   mergeSelections(dealSelections, nil),
			})
			continue
		}
		for i := int32(0); i < m.Quantity; i++ {
			var unitSels []catalog.VariantSelection
			if int(i) < len(mu.Units) {
				unitSels = mu.Units[i]
			}
			breakdown = append(breakdown, order.BreakdownEntry{
				MenuItemID:   m.Item.ID,
				MenuItemName: m.Item.Name,
				Quantity:     1,
				Selections:   mergeSelections(dealSelections, unitSels),
			})
		}
	}
	return breakdown
}

// mergeSelections prepends the deal-level selections to a unit's own. The
// unit's selection wins when both cover the same variant.
func mergeSelections(dealLevel, unit []catalog.VariantSelection) []catalog.VariantSelection {
	if len(dealLevel) == 0 && len(unit) == 0 {
		return nil
	}
	covered := make(map[string]bool, len(unit))
	for _, sel := range unit {
		covered[sel.VariantID.String()] = true
	}
	merged := make([]catalog.VariantSelection, 0, len(dealLevel)+len(unit))
	for _, sel := range dealLevel {
		if !covered[sel.VariantID.String()] {
			merged = append(merged, sel)
		}
	}
	return append(merged, unit...)
}
