package dto

import (
	"facturo/internal/core/apperror"
	"facturo/internal/core/tenant"
	"facturo/internal/domain/currency"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/totals"
)

// TotalsPreviewRequest asks for the totals of unsaved content.
// Kind only selects the line validation rules and defaults to quote.
type TotalsPreviewRequest struct {
	Kind          string            `json:"kind"`
	Currency      string            `json:"currency"`
	Discount      *totals.Discount  `json:"discount"`
	StampIncluded bool              `json:"stampIncluded"`
	Items         []LineItemRequest `json:"items"`
}

// ToDocument builds a transient document for pricing.
func (r TotalsPreviewRequest) ToDocument(tc tenant.TenantContext) (*documents.Document, error) {
	kind := documents.KindQuote
	if r.Kind != "" {
		kind = documents.Kind(r.Kind)
		if !kind.Valid() {
			return nil, apperror.NewFieldValidation("kind", "unknown document kind").WithDetail("value", r.Kind)
		}
	}

	doc := documents.NewDocument(tc.CompanyID, tc.UserID, kind)
	if r.Currency != "" {
		doc.Currency = r.Currency
	}
	doc.Discount = r.Discount
	doc.StampIncluded = r.StampIncluded
	doc.Items = make([]documents.LineItem, len(r.Items))
	for i, item := range r.Items {
		line, err := item.toLineItem(i + 1)
		if err != nil {
			return nil, err
		}
		doc.Items[i] = line
	}
	return doc, nil
}

// TotalsPreviewResponse carries rounded amounts and their printed form.
type TotalsPreviewResponse struct {
	Currency      currency.Currency         `json:"currency"`
	Items         []LineItemResponse        `json:"items"`
	Totals        totals.Totals             `json:"totals"`
	Formatted     documents.FormattedTotals `json:"formatted"`
	TaxSummary    []documents.TaxLine       `json:"taxSummary"`
	AmountInWords string                    `json:"amountInWords"`
}

// FromPreview builds the response from a recalculated document.
func FromPreview(doc *documents.Document) TotalsPreviewResponse {
	data := documents.BuildPrintData(doc)
	return TotalsPreviewResponse{
		Currency:      data.Currency,
		Items:         FromDocument(doc).Items,
		Totals:        data.Totals,
		Formatted:     data.Formatted,
		TaxSummary:    data.TaxSummary,
		AmountInWords: data.AmountInWords,
	}
}

// PrintResponse is the payload handed to the PDF renderer.
type PrintResponse struct {
	Document      DocumentResponse          `json:"document"`
	Currency      currency.Currency         `json:"currency"`
	SourceNumber  string                    `json:"sourceNumber,omitempty"`
	Totals        totals.Totals             `json:"totals"`
	Formatted     documents.FormattedTotals `json:"formatted"`
	TaxSummary    []documents.TaxLine       `json:"taxSummary"`
	AmountInWords string                    `json:"amountInWords"`
}

// FromPrintData converts print data.
func FromPrintData(p documents.PrintData) PrintResponse {
	return PrintResponse{
		Document:      FromDocument(p.Document),
		Currency:      p.Currency,
		SourceNumber:  p.SourceNumber,
		Totals:        p.Totals,
		Formatted:     p.Formatted,
		TaxSummary:    p.TaxSummary,
		AmountInWords: p.AmountInWords,
	}
}
