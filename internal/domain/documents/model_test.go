package documents

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/domain/totals"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(productID *id.ID, qty, price, vat string) LineItem {
	return LineItem{
		ProductID:   productID,
		Description: "item",
		Quantity:    dec(qty),
		UnitPrice:   dec(price),
		VATRate:     dec(vat),
	}
}

func TestDocument_RecalculateIgnoresCallerTotals(t *testing.T) {
	doc := NewDocument(id.New(), "u1", KindQuote)
	doc.Items = []LineItem{line(nil, "2", "100", "19")}
	doc.Items[0].Total = dec("999")
	doc.Totals.Total = dec("1")

	doc.Recalculate()

	assert.True(t, doc.Items[0].Total.Equal(dec("200")))
	assert.True(t, doc.Items[0].VATAmount.Equal(dec("38")))
	assert.Equal(t, 1, doc.Items[0].LineNo)
	assert.False(t, id.IsNil(doc.Items[0].ID))
	assert.True(t, doc.Total.Equal(dec("238")))
}

func TestDocument_RecalculateFillsDefaultFodec(t *testing.T) {
	doc := NewDocument(id.New(), "u1", KindSaleInvoice)
	item := line(nil, "1", "1000", "19")
	item.Fodec = &totals.Fodec{}
	doc.Items = []LineItem{item}

	doc.Recalculate()

	require.NotNil(t, doc.Items[0].Fodec)
	assert.True(t, doc.Items[0].Fodec.Rate.Equal(dec("0.01")))
	assert.True(t, doc.Items[0].FodecAmount.Equal(dec("10")))
	assert.True(t, doc.Total.Equal(dec("1201.9")))
}

func TestDocument_Validate(t *testing.T) {
	base := func(kind Kind) *Document {
		d := NewDocument(id.New(), "u1", kind)
		d.Items = []LineItem{line(nil, "1", "10", "19")}
		return d
	}

	tests := []struct {
		name   string
		mutate func(d *Document)
		kind   Kind
		code   string
	}{
		{"valid quote", func(d *Document) {}, KindQuote, ""},
		{"sale allows zero quantity", func(d *Document) { d.Items[0].Quantity = dec("0") }, KindQuote, ""},
		{"sale rejects negative quantity", func(d *Document) { d.Items[0].Quantity = dec("-1") }, KindQuote, apperror.CodeValidation},
		{"purchase rejects zero quantity", func(d *Document) { d.Items[0].Quantity = dec("0") }, KindPurchaseOrder, apperror.CodeValidation},
		{"negative price", func(d *Document) { d.Items[0].UnitPrice = dec("-0.5") }, KindQuote, apperror.CodeValidation},
		{"vat above 100", func(d *Document) { d.Items[0].VATRate = dec("101") }, KindQuote, apperror.CodeValidation},
		{"fodec above 1", func(d *Document) { d.Items[0].Fodec = &totals.Fodec{Rate: dec("1.5")} }, KindQuote, apperror.CodeValidation},
		{"quantity with 4 decimals", func(d *Document) { d.Items[0].Quantity = dec("1.2345") }, KindQuote, apperror.CodeValidation},
		{"quantity trailing zeros", func(d *Document) { d.Items[0].Quantity = dec("1.2340") }, KindQuote, ""},
		{"price with 4 decimals", func(d *Document) { d.Items[0].UnitPrice = dec("10.0004") }, KindQuote, apperror.CodeValidation},
		{"vat with 3 decimals", func(d *Document) { d.Items[0].VATRate = dec("7.125") }, KindQuote, apperror.CodeValidation},
		{"vat with 2 decimals", func(d *Document) { d.Items[0].VATRate = dec("7.25") }, KindQuote, ""},
		{"fodec with 5 decimals", func(d *Document) { d.Items[0].Fodec = &totals.Fodec{Rate: dec("0.01005")} }, KindQuote, apperror.CodeValidation},
		{"unknown currency", func(d *Document) { d.Currency = "GBP" }, KindQuote, apperror.CodeValidation},
		{"status not legal for kind", func(d *Document) { d.Status = StatusPaid }, KindQuote, apperror.CodeValidation},
		{"credit note without source", func(d *Document) {}, KindSaleCreditNote, apperror.CodeCreditNoteSource},
		{"source on non credit note", func(d *Document) { d.SourceDocumentID = id.Ptr(id.New()) }, KindSaleInvoice, apperror.CodeCreditNoteSource},
		{"due date before date", func(d *Document) {
			due := d.Date.Add(-24 * time.Hour)
			d.DueDate = &due
		}, KindSaleInvoice, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base(tt.kind)
			tt.mutate(d)
			err := d.Validate(context.Background())
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestDeriveFrom_CopiesWithoutSharing(t *testing.T) {
	product := id.New()
	src := NewDocument(id.New(), "u1", KindSaleInvoice)
	src.Number = "FAC-2026-00001"
	src.CounterpartyName = "Client SA"
	src.Discount = &totals.Discount{Type: totals.DiscountPercent, Value: dec("10")}
	src.StampIncluded = true
	src.Items = []LineItem{line(&product, "2", "100", "19")}
	src.Recalculate()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dst := deriveFrom(src, KindSaleCreditNote, src.CompanyID, "u2", now)

	require.NotNil(t, dst.SourceDocumentID)
	assert.Equal(t, src.ID, *dst.SourceDocumentID)
	assert.Equal(t, src.ID, *dst.DerivedFromID)
	assert.Equal(t, StatusDraft, dst.Status)
	assert.True(t, dst.Total.Equal(src.Total))
	assert.NotEqual(t, src.Items[0].ID, dst.Items[0].ID)

	*dst.Items[0].ProductID = id.New()
	dst.Discount.Value = dec("50")
	assert.Equal(t, product, *src.Items[0].ProductID)
	assert.True(t, src.Discount.Value.Equal(dec("10")))
}
