package order

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/enum"
)

var (
	ErrInvalidDiscountType  = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("discount_value must be >= 0")
)

var oneHundred = decimal.NewFromInt(100)

// ApplyDiscount applies a single discount to the order, replacing any prior
// one. Percentage discounts compute subtotal × value / 100; fixed discounts
// take the value as-is. Either way the amount is clamped to [0, subtotal].
// Authorization happens before this engine is invoked; none is done here.
func ApplyDiscount(o *Order, lines []Line, discountType string, value decimal.Decimal, reference string) error {
	switch discountType {
	case enum.DiscountTypePercentage, enum.DiscountTypeFixed:
	default:
		return ErrInvalidDiscountType
	}
	if value.IsNegative() {
		return ErrInvalidDiscountValue
	}

	// Discount math runs against the current subtotal.
	Recompute(o, lines)

	var amount decimal.Decimal
	if discountType == enum.DiscountTypePercentage {
		amount = o.Subtotal.Mul(value).Div(oneHundred)
	} else {
		amount = value
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(o.Subtotal) {
		amount = o.Subtotal
	}

	o.DiscountType = discountType
	o.DiscountValue = value
	o.DiscountAmount = amount
	o.DiscountReference = reference
	Recompute(o, lines)
	return nil
}

// RemoveDiscount clears the discount back to its zero state and recomputes.
func RemoveDiscount(o *Order, lines []Line) {
	o.DiscountType = ""
	o.DiscountValue = decimal.Zero
	o.DiscountAmount = decimal.Zero
	o.DiscountReference = ""
	Recompute(o, lines)
}
