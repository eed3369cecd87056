package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func twoAtHundred() []Item {
	return []Item{{Quantity: d("2"), UnitPrice: d("100"), VATRate: d("19")}}
}

func TestCompute_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		discount *Discount
		stamp    bool
		want     map[string]string
	}{
		{
			name:  "no discount",
			items: twoAtHundred(),
			want: map[string]string{
				"subtotal": "200", "discount": "0", "base": "200", "tax": "38", "total": "238",
			},
		},
		{
			name:     "percent discount",
			items:    twoAtHundred(),
			discount: &Discount{Type: DiscountPercent, Value: d("10")},
			want: map[string]string{
				"subtotal": "200", "discount": "20", "base": "180", "tax": "34.2", "total": "214.2",
			},
		},
		{
			name:     "fixed discount above subtotal is clamped",
			items:    twoAtHundred(),
			discount: &Discount{Type: DiscountFixed, Value: d("300")},
			want: map[string]string{
				"subtotal": "200", "discount": "200", "base": "0", "tax": "0", "total": "0",
			},
		},
		{
			name:     "clamped discount keeps stamp",
			items:    twoAtHundred(),
			discount: &Discount{Type: DiscountFixed, Value: d("300")},
			stamp:    true,
			want: map[string]string{
				"subtotal": "200", "discount": "200", "base": "0", "tax": "0", "total": "1",
			},
		},
		{
			name: "fodec line",
			items: []Item{{
				Quantity: d("1"), UnitPrice: d("1000"), VATRate: d("19"),
				Fodec: &Fodec{Rate: d("0.01")},
			}},
			want: map[string]string{
				"subtotal": "1000", "fodec": "10", "discount": "0", "base": "1010", "tax": "191.9", "total": "1201.9",
			},
		},
		{
			name: "fodec without rate uses default",
			items: []Item{{
				Quantity: d("1"), UnitPrice: d("1000"), VATRate: d("19"), Fodec: &Fodec{},
			}},
			want: map[string]string{"fodec": "10", "total": "1201.9"},
		},
		{
			name:  "stamp only",
			stamp: true,
			want: map[string]string{
				"subtotal": "0", "base": "0", "tax": "0", "total": "1",
			},
		},
		{
			name:     "negative discount is ignored",
			items:    twoAtHundred(),
			discount: &Discount{Type: DiscountPercent, Value: d("-5")},
			want:     map[string]string{"discount": "0", "total": "238"},
		},
		{
			name:     "unknown discount type is ignored",
			items:    twoAtHundred(),
			discount: &Discount{Type: "bogus", Value: d("50")},
			want:     map[string]string{"discount": "0", "total": "238"},
		},
		{
			name:     "percent above 100 is capped",
			items:    twoAtHundred(),
			discount: &Discount{Type: DiscountPercent, Value: d("150")},
			want:     map[string]string{"discount": "200", "total": "0"},
		},
		{
			name: "mixed rates with discount",
			items: []Item{
				{Quantity: d("1"), UnitPrice: d("300"), VATRate: d("19")},
				{Quantity: d("1"), UnitPrice: d("100"), VATRate: d("7")},
			},
			discount: &Discount{Type: DiscountFixed, Value: d("40")},
			// net 360 → shares 270 and 90; tax 51.3 + 6.3
			want: map[string]string{
				"subtotal": "400", "discount": "40", "base": "360", "tax": "57.6", "total": "417.6",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.items, tt.stamp, tt.discount)
			fields := map[string]decimal.Decimal{
				"subtotal": got.Subtotal,
				"fodec":    got.TotalFodec,
				"discount": got.DiscountAmount,
				"base":     got.BaseTVA,
				"tax":      got.TaxAmount,
				"total":    got.Total,
			}
			for name, want := range tt.want {
				assertDec(t, want, fields[name], name)
			}
		})
	}
}

func TestCompute_Consistency(t *testing.T) {
	items := []Item{
		{Quantity: d("3"), UnitPrice: d("12.345"), VATRate: d("19"), Fodec: &Fodec{Rate: d("0.01")}},
		{Quantity: d("0.5"), UnitPrice: d("80"), VATRate: d("7")},
		{Quantity: d("7"), UnitPrice: d("1.1"), VATRate: d("0")},
	}
	discounts := []*Discount{
		nil,
		{Type: DiscountPercent, Value: d("12.5")},
		{Type: DiscountFixed, Value: d("25")},
		{Type: DiscountFixed, Value: d("100000")},
	}

	for _, disc := range discounts {
		for _, stamp := range []bool{false, true} {
			got := Compute(items, stamp, disc)

			assert.True(t, got.DiscountAmount.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, got.DiscountAmount.LessThanOrEqual(got.Subtotal))
			assert.True(t, got.BaseTVA.Equal(got.Subtotal.Sub(got.DiscountAmount).Add(got.TotalFodec)))
			assert.True(t, got.Total.Equal(got.BaseTVA.Add(got.TaxAmount).Add(got.Stamp)))
			assert.True(t, got.Total.GreaterThanOrEqual(decimal.Zero))

			again := Compute(items, stamp, disc)
			assert.Equal(t, got, again, "compute must be deterministic")
		}
	}
}

func TestCompute_StampAddsExactlyStampAmount(t *testing.T) {
	without := Compute(twoAtHundred(), false, nil)
	with := Compute(twoAtHundred(), true, nil)
	assert.True(t, with.Total.Sub(without.Total).Equal(StampAmount))
}

func TestCompute_TotalGrowsWithQuantity(t *testing.T) {
	disc := &Discount{Type: DiscountPercent, Value: d("10")}
	prev := decimal.Zero
	for q := 1; q <= 5; q++ {
		items := []Item{{Quantity: decimal.NewFromInt(int64(q)), UnitPrice: d("9.99"), VATRate: d("19")}}
		got := Compute(items, false, disc)
		assert.True(t, got.Total.GreaterThan(prev), "q=%d", q)
		prev = got.Total
	}
}

func TestCompute_TotalNeverGrowsWithDiscount(t *testing.T) {
	plain := []Item{
		{Quantity: d("3"), UnitPrice: d("19.99"), VATRate: d("19")},
		{Quantity: d("1.5"), UnitPrice: d("7.333"), VATRate: d("7")},
		{Quantity: d("2"), UnitPrice: d("0.5"), VATRate: d("0")},
	}
	withFodec := []Item{
		{Quantity: d("3"), UnitPrice: d("19.99"), VATRate: d("19"), Fodec: &Fodec{Rate: d("0.01")}},
		{Quantity: d("1.5"), UnitPrice: d("7.333"), VATRate: d("7")},
		{Quantity: d("2"), UnitPrice: d("0.5"), VATRate: d("13"), Fodec: &Fodec{}},
	}

	for _, itemsCase := range []struct {
		name  string
		items []Item
	}{{"plain", plain}, {"fodec", withFodec}} {
		for _, typ := range []DiscountType{DiscountPercent, DiscountFixed} {
			t.Run(itemsCase.name+"/"+string(typ), func(t *testing.T) {
				for _, stamp := range []bool{false, true} {
					prev := Compute(itemsCase.items, stamp, nil).Total
					// steps run past 100% and past the subtotal to cover the caps
					for v := 1; v <= 150; v++ {
						disc := &Discount{Type: typ, Value: decimal.New(int64(v), -1).Mul(d("7.5"))}
						got := Compute(itemsCase.items, stamp, disc).Total
						assert.False(t, got.GreaterThan(prev), "value %s: %s > %s", disc.Value, got, prev)
						prev = got
					}
				}
			})
		}
	}
}

func TestCompute_EmptyItems(t *testing.T) {
	got := Compute(nil, false, &Discount{Type: DiscountFixed, Value: d("10")})
	assert.True(t, got.Total.IsZero())
	assert.True(t, got.DiscountAmount.IsZero())
}

func TestItem_Normalize(t *testing.T) {
	item := Item{Quantity: d("1"), UnitPrice: d("1"), Fodec: &Fodec{}}.Normalize()
	require.NotNil(t, item.Fodec)
	assert.True(t, item.Fodec.Rate.Equal(DefaultFodecRate))

	plain := Item{Quantity: d("1")}.Normalize()
	assert.Nil(t, plain.Fodec)
}

func TestBreakdownByRate_SumsToTaxAmount(t *testing.T) {
	items := []Item{
		{Quantity: d("1"), UnitPrice: d("300"), VATRate: d("19")},
		{Quantity: d("2"), UnitPrice: d("50"), VATRate: d("7"), Fodec: &Fodec{Rate: d("0.01")}},
		{Quantity: d("1"), UnitPrice: d("33.333"), VATRate: d("19")},
	}
	disc := &Discount{Type: DiscountPercent, Value: d("5")}

	rates := BreakdownByRate(items, disc)
	require.Len(t, rates, 2)
	assertDec(t, "19", rates[0].Rate, "first rate")
	assertDec(t, "7", rates[1].Rate, "second rate")

	sum := decimal.Zero
	for _, r := range rates {
		sum = sum.Add(r.Tax)
	}
	assertDec(t, Compute(items, false, disc).TaxAmount.String(), sum, "tax sum")
}

func TestTotals_Round(t *testing.T) {
	got := Totals{Subtotal: d("10.0005"), Total: d("1.23449")}.Round(3)
	assertDec(t, "10.001", got.Subtotal, "subtotal")
	assertDec(t, "1.234", got.Total, "total")
}
