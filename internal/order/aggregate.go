package order

import (
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/enum"
)

// Recompute rebuilds the order-level totals from the current line set. It is
// pure and idempotent, and must run synchronously after every local line
// mutation so totals are never observably stale within one terminal.
//
//	subtotal = Σ line.TotalPrice
//	total    = max(0, subtotal − discountAmount) + deliveryCharge
//
// The discount amount is not recalculated here (that is the discount
// engine's job) but it is clamped so it can never exceed the subtotal. The
// delivery charge only applies to delivery orders.
func Recompute(o *Order, lines []Line) {
	subtotal := decimal.Zero
	for _, ln := range lines {
		subtotal = subtotal.Add(ln.TotalPrice)
	}
	o.Subtotal = subtotal

	if o.DiscountAmount.IsNegative() {
		o.DiscountAmount = decimal.Zero
	}
	if o.DiscountAmount.GreaterThan(subtotal) {
		o.DiscountAmount = subtotal
	}

	if o.Type != enum.OrderTypeDelivery || o.DeliveryCharge.IsNegative() {
		o.DeliveryCharge = decimal.Zero
	}

	total := subtotal.Sub(o.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total.Add(o.DeliveryCharge)
}

// UnitPriceOf recovers a line's unit price for quantity adjustments.
// Deriving it as TotalPrice/Quantity would divide by zero when the quantity
// is transiently 0 during a decrement-to-removal, so the stored UnitPrice
// field is the fallback.
func UnitPriceOf(ln Line) decimal.Decimal {
	if ln.Quantity > 0 {
		return ln.TotalPrice.Div(decimal.NewFromInt32(ln.Quantity))
	}
	return ln.UnitPrice
}

// Reprice returns the line's total at the given quantity, floored at zero.
func Reprice(ln Line, quantity int32) decimal.Decimal {
	total := UnitPriceOf(ln).Mul(decimal.NewFromInt32(quantity))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
