package documents

import (
	"context"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/domain/currency"
	"facturo/internal/domain/totals"
)

// PrintData is everything the PDF renderer needs. Amounts are rounded to the
// currency's minor unit; the stored totals stay unrounded.
type PrintData struct {
	Document *Document         `json:"document"`
	Currency currency.Currency `json:"currency"`

	// SourceNumber is the number of the invoice a credit note refers to
	SourceNumber string `json:"sourceNumber,omitempty"`

	Totals     totals.Totals   `json:"totals"`
	Formatted  FormattedTotals `json:"formatted"`
	TaxSummary []TaxLine       `json:"taxSummary"`

	AmountInWords string `json:"amountInWords"`
}

// FormattedTotals are the totals rendered as display strings.
type FormattedTotals struct {
	Subtotal       string `json:"subtotal"`
	TotalFodec     string `json:"totalFodec"`
	DiscountAmount string `json:"discountAmount"`
	BaseTVA        string `json:"baseTva"`
	TaxAmount      string `json:"taxAmount"`
	Stamp          string `json:"stamp"`
	Total          string `json:"total"`
}

// TaxLine is one row of the VAT summary table.
type TaxLine struct {
	Rate string `json:"rate"`
	Base string `json:"base"`
	Tax  string `json:"tax"`
}

// BuildPrintData prepares the printable view of doc.
func BuildPrintData(doc *Document) PrintData {
	cur := currency.Lookup(doc.Currency)
	rounded := doc.Totals.Round(cur.DecimalPlaces)

	data := PrintData{
		Document: doc,
		Currency: cur,
		Totals:   rounded,
		Formatted: FormattedTotals{
			Subtotal:       cur.Format(rounded.Subtotal),
			TotalFodec:     cur.Format(rounded.TotalFodec),
			DiscountAmount: cur.Format(rounded.DiscountAmount),
			BaseTVA:        cur.Format(rounded.BaseTVA),
			TaxAmount:      cur.Format(rounded.TaxAmount),
			Stamp:          cur.Format(rounded.Stamp),
			Total:          cur.Format(rounded.Total),
		},
		AmountInWords: cur.InWords(rounded.Total),
	}

	for _, rb := range totals.BreakdownByRate(doc.PricingItems(), doc.Discount) {
		data.TaxSummary = append(data.TaxSummary, TaxLine{
			Rate: rb.Rate.String() + " %",
			Base: cur.Format(rb.Base),
			Tax:  cur.Format(rb.Tax),
		})
	}

	return data
}

// PrintData loads a document and prepares its printable view.
func (s *Service) PrintData(ctx context.Context, tc tenant.TenantContext, docID id.ID) (PrintData, error) {
	doc, err := s.Get(ctx, tc, docID)
	if err != nil {
		return PrintData{}, err
	}

	data := BuildPrintData(doc)
	if doc.SourceDocumentID != nil {
		src, err := s.repo.GetByID(ctx, tc.CompanyID, *doc.SourceDocumentID)
		switch {
		case err == nil:
			data.SourceNumber = src.Number
		case !apperror.IsNotFound(err):
			return PrintData{}, err
		}
	}

	return data, nil
}
