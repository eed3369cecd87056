package totals

import (
	"github.com/shopspring/decimal"

	"facturo/internal/core/types"
)

// DiscountType selects how Discount.Value is read.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Discount is a document-level discount.
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Normalized returns the safe form of d: nil when the discount has no effect
// (missing, unknown type, zero or negative value), percent capped at 100.
func (d *Discount) Normalized() *Discount {
	if d == nil || !d.Value.IsPositive() {
		return nil
	}
	switch d.Type {
	case DiscountPercent:
		return &Discount{Type: DiscountPercent, Value: decimal.Min(d.Value, types.Hundred())}
	case DiscountFixed:
		return &Discount{Type: DiscountFixed, Value: d.Value}
	default:
		return nil
	}
}

// Amount returns the discount applied to subtotal, always within [0, subtotal].
func (d *Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	n := d.Normalized()
	if n == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	if n.Type == DiscountPercent {
		amount = types.PercentOf(subtotal, n.Value)
	} else {
		amount = n.Value
	}
	return types.Clamp(amount, decimal.Zero, subtotal)
}
