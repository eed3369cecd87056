// Package totals computes the legal totals of a commercial document.
//
// Compute is pure: it never fails and never rounds. Amounts are kept at full
// decimal precision and rounded only for display.
package totals

import (
	"github.com/shopspring/decimal"

	"facturo/internal/core/types"
)

// StampAmount is the fixed fiscal stamp (timbre fiscal) added when requested.
var StampAmount = decimal.RequireFromString("1.000")

// DefaultFodecRate is the FODEC rate applied when a FODEC line carries no explicit rate.
var DefaultFodecRate = decimal.RequireFromString("0.01")

// Fodec marks a line subject to the FODEC levy. A nil *Fodec means the line is exempt.
type Fodec struct {
	// Rate is a fraction (0.01 = 1%). Zero selects DefaultFodecRate, so a
	// FODEC line always carries a positive rate; exempt a line with a nil *Fodec.
	Rate decimal.Decimal `json:"rate"`
}

// EffectiveRate returns the rate actually applied.
func (f *Fodec) EffectiveRate() decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	if f.Rate.IsZero() {
		return DefaultFodecRate
	}
	return f.Rate
}

// Item is the pricing input of one document line.
type Item struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// VATRate is a percentage (19 = 19%)
	VATRate decimal.Decimal
	Fodec   *Fodec
}

// Normalize returns the item with the default FODEC rate filled in.
func (i Item) Normalize() Item {
	if i.Fodec != nil && i.Fodec.Rate.IsZero() {
		i.Fodec = &Fodec{Rate: DefaultFodecRate}
	}
	return i
}

// LineAmounts are the amounts derived from a single Item.
type LineAmounts struct {
	Total       decimal.Decimal `json:"total"`
	FodecAmount decimal.Decimal `json:"fodecAmount"`
	VATAmount   decimal.Decimal `json:"vatAmount"`
}

// Amounts derives the line total, FODEC and VAT of the item before any document discount.
func (i Item) Amounts() LineAmounts {
	total := i.Quantity.Mul(i.UnitPrice)
	fodec := total.Mul(i.Fodec.EffectiveRate())
	return LineAmounts{
		Total:       total,
		FodecAmount: fodec,
		VATAmount:   types.PercentOf(total.Add(fodec), i.VATRate),
	}
}

// Totals is the result of Compute. Amounts are unrounded.
type Totals struct {
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TotalFodec     decimal.Decimal `db:"total_fodec" json:"totalFodec"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discountAmount"`
	BaseTVA        decimal.Decimal `db:"base_tva" json:"baseTva"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"taxAmount"`
	Stamp          decimal.Decimal `db:"stamp" json:"stamp"`
	Total          decimal.Decimal `db:"total" json:"total"`
}

// Round returns a copy with every amount rounded half away from zero to places.
func (t Totals) Round(places int32) Totals {
	return Totals{
		Subtotal:       t.Subtotal.Round(places),
		TotalFodec:     t.TotalFodec.Round(places),
		DiscountAmount: t.DiscountAmount.Round(places),
		BaseTVA:        t.BaseTVA.Round(places),
		TaxAmount:      t.TaxAmount.Round(places),
		Stamp:          t.Stamp.Round(places),
		Total:          t.Total.Round(places),
	}
}

// Compute derives the document totals:
//
//	subtotal   = Σ qty·price
//	discount   = clamp(percent of subtotal | fixed, 0, subtotal)
//	baseTVA    = subtotal − discount + Σ fodec
//	tax        = Σ (lineTotal·(subtotal−discount)/subtotal + lineFodec)·vat/100
//	total      = baseTVA + tax + stamp
//
// The discount is spread over the lines in proportion to their totals; FODEC
// is computed on the undiscounted line total.
func Compute(items []Item, stampIncluded bool, discount *Discount) Totals {
	var t Totals
	lines := make([]LineAmounts, len(items))
	for i, item := range items {
		lines[i] = item.Amounts()
		t.Subtotal = t.Subtotal.Add(lines[i].Total)
		t.TotalFodec = t.TotalFodec.Add(lines[i].FodecAmount)
	}

	t.DiscountAmount = discount.Amount(t.Subtotal)
	net := t.Subtotal.Sub(t.DiscountAmount)
	t.BaseTVA = net.Add(t.TotalFodec)

	for i, item := range items {
		base := discountedShare(lines[i].Total, net, t.Subtotal).Add(lines[i].FodecAmount)
		t.TaxAmount = t.TaxAmount.Add(types.PercentOf(base, item.VATRate))
	}

	if stampIncluded {
		t.Stamp = StampAmount
	}
	t.Total = t.BaseTVA.Add(t.TaxAmount).Add(t.Stamp)
	return t
}

// RateBase is the taxable base and tax of all lines sharing one VAT rate.
type RateBase struct {
	Rate decimal.Decimal `json:"rate"`
	Base decimal.Decimal `json:"base"`
	Tax  decimal.Decimal `json:"tax"`
}

// BreakdownByRate groups the taxable bases by VAT rate, in order of first
// appearance. The sum of Tax equals Compute(...).TaxAmount.
func BreakdownByRate(items []Item, discount *Discount) []RateBase {
	subtotal := decimal.Zero
	lines := make([]LineAmounts, len(items))
	for i, item := range items {
		lines[i] = item.Amounts()
		subtotal = subtotal.Add(lines[i].Total)
	}
	net := subtotal.Sub(discount.Amount(subtotal))

	var out []RateBase
	index := make(map[string]int)
	for i, item := range items {
		key := item.VATRate.String()
		pos, ok := index[key]
		if !ok {
			pos = len(out)
			index[key] = pos
			out = append(out, RateBase{Rate: item.VATRate})
		}
		base := discountedShare(lines[i].Total, net, subtotal).Add(lines[i].FodecAmount)
		out[pos].Base = out[pos].Base.Add(base)
		out[pos].Tax = out[pos].Tax.Add(types.PercentOf(base, item.VATRate))
	}
	return out
}

// discountedShare returns lineTotal·net/subtotal, or lineTotal when subtotal is zero.
// Multiplying first keeps terminating results exact.
func discountedShare(lineTotal, net, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return lineTotal
	}
	return lineTotal.Mul(net).Div(subtotal)
}
