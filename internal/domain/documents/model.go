package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"facturo/internal/core/apperror"
	"facturo/internal/core/entity"
	"facturo/internal/core/id"
	"facturo/internal/core/types"
	"facturo/internal/domain/currency"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/domain/totals"
)

// LineItem is one line of a document.
// Total, FodecAmount and VATAmount are derived and recomputed on every save.
type LineItem struct {
	ID     id.ID `json:"id"`
	LineNo int   `json:"lineNo"`

	// ProductID is nil for free-text lines, which never move stock
	ProductID   *id.ID `json:"productId,omitempty"`
	Reference   string `json:"reference"`
	Description string `json:"description"`

	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
	// VATRate is a percentage (0-100)
	VATRate decimal.Decimal `json:"vatRate"`
	Fodec   *totals.Fodec   `json:"fodec,omitempty"`

	Total       types.Money `json:"total"`
	FodecAmount types.Money `json:"fodecAmount"`
	VATAmount   types.Money `json:"vatAmount"`
}

func (l LineItem) pricing() totals.Item {
	return totals.Item{
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		VATRate:   l.VATRate,
		Fodec:     l.Fodec,
	}
}

// sameContent reports whether two lines would produce the same stock and totals.
func (l LineItem) sameContent(o LineItem) bool {
	return id.EqualPtr(l.ProductID, o.ProductID) &&
		l.Reference == o.Reference &&
		l.Description == o.Description &&
		l.Quantity.Equal(o.Quantity) &&
		l.UnitPrice.Equal(o.UnitPrice) &&
		l.VATRate.Equal(o.VATRate) &&
		l.Fodec.EffectiveRate().Equal(o.Fodec.EffectiveRate()) &&
		(l.Fodec == nil) == (o.Fodec == nil)
}

// Document is a commercial document of any kind.
type Document struct {
	entity.Document

	Kind   Kind   `db:"kind" json:"kind"`
	Status Status `db:"status" json:"status"`

	// Counterparty is the client or supplier, copied at creation time
	CounterpartyID   *id.ID `db:"counterparty_id" json:"counterpartyId,omitempty"`
	CounterpartyName string `db:"counterparty_name" json:"counterpartyName"`

	DueDate  *time.Time `db:"due_date" json:"dueDate,omitempty"`
	Currency string     `db:"currency" json:"currency"`

	Discount      *totals.Discount `db:"discount" json:"discount,omitempty"`
	StampIncluded bool             `db:"stamp_included" json:"stampIncluded"`

	// SourceDocumentID is the invoice a credit note refers to; set only by conversion
	SourceDocumentID *id.ID `db:"source_document_id" json:"sourceDocumentId,omitempty"`
	// DerivedFromID is the document this one was converted from
	DerivedFromID *id.ID `db:"derived_from_id" json:"derivedFromId,omitempty"`

	// StockApplied is set once the kind's stock effect has been committed
	StockApplied bool `db:"stock_applied" json:"stockApplied"`

	totals.Totals `json:"totals"`

	Items []LineItem `db:"-" json:"items"`
}

// NewDocument creates a draft document of the given kind.
func NewDocument(companyID id.ID, userID string, kind Kind) *Document {
	return &Document{
		Document: entity.NewDocument(companyID, userID),
		Kind:     kind,
		Status:   StatusDraft,
		Currency: currency.DefaultCode,
		Items:    make([]LineItem, 0),
	}
}

// PricingItems returns the lines as totals engine input.
func (d *Document) PricingItems() []totals.Item {
	items := make([]totals.Item, len(d.Items))
	for i, l := range d.Items {
		items[i] = l.pricing()
	}
	return items
}

// Recalculate numbers the lines and recomputes every derived amount.
// Caller-supplied totals are discarded.
func (d *Document) Recalculate() {
	for i := range d.Items {
		l := &d.Items[i]
		if id.IsNil(l.ID) {
			l.ID = id.New()
		}
		l.LineNo = i + 1

		item := l.pricing().Normalize()
		l.Fodec = item.Fodec
		amounts := item.Amounts()
		l.Total = amounts.Total
		l.FodecAmount = amounts.FodecAmount
		l.VATAmount = amounts.VATAmount
	}

	d.Discount = d.Discount.Normalized()
	d.Totals = totals.Compute(d.PricingItems(), d.StampIncluded, d.Discount)
}

// StockRequest builds the coordinator request for the kind's effect.
func (d *Document) StockRequest() stock.Request {
	lines := make([]stock.Line, 0, len(d.Items))
	for _, l := range d.Items {
		lines = append(lines, stock.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return stock.Request{
		DocumentID:     d.ID,
		DocumentNumber: d.Number,
		Effect:         d.Kind.StockEffect(),
		Lines:          lines,
	}
}

var maxFodecRate = decimal.NewFromInt(1)

// Decimal places kept by the document_items columns. Lines carrying more
// would be rounded on write and stop matching the stored totals.
const (
	quantityPlaces  = 3
	unitPricePlaces = 3
	vatRatePlaces   = 2
	fodecRatePlaces = 4
)

func exceedsPlaces(v decimal.Decimal, places int32) bool {
	return !v.Equal(v.Round(places))
}

// Validate implements entity.Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	if !d.Kind.Valid() {
		return apperror.NewFieldValidation("kind", "unknown document kind").
			WithDetail("value", string(d.Kind))
	}

	if !d.Status.Valid() || !d.Kind.AllowsStatus(d.Status) {
		return apperror.NewFieldValidation("status", "status not allowed for this kind").
			WithDetail("value", string(d.Status))
	}

	if !currency.Known(d.Currency) {
		return apperror.NewFieldValidation("currency", "unsupported currency").
			WithDetail("value", d.Currency)
	}

	if d.DueDate != nil && d.DueDate.Before(d.Date) {
		return apperror.NewFieldValidation("dueDate", "due date is before the document date")
	}

	switch {
	case d.Kind.IsCreditNote() && d.SourceDocumentID == nil:
		return apperror.NewCreditNoteSource("credit note requires a source invoice")
	case !d.Kind.IsCreditNote() && d.SourceDocumentID != nil:
		return apperror.NewCreditNoteSource("only credit notes reference a source invoice")
	}

	for i, l := range d.Items {
		if err := d.validateLine(l); err != nil {
			return err.WithDetail("lineNo", i+1)
		}
	}

	return nil
}

func (d *Document) validateLine(l LineItem) *apperror.AppError {
	if d.Kind.Side() == SidePurchase {
		if !l.Quantity.IsPositive() {
			return apperror.NewFieldValidation("items.quantity", "quantity must be positive")
		}
	} else if l.Quantity.IsNegative() {
		return apperror.NewFieldValidation("items.quantity", "quantity must not be negative")
	}
	if exceedsPlaces(l.Quantity, quantityPlaces) {
		return apperror.NewFieldValidation("items.quantity", "quantity has more than 3 decimal places")
	}

	if l.UnitPrice.IsNegative() {
		return apperror.NewFieldValidation("items.unitPrice", "unit price must not be negative")
	}
	if exceedsPlaces(l.UnitPrice, unitPricePlaces) {
		return apperror.NewFieldValidation("items.unitPrice", "unit price has more than 3 decimal places")
	}

	if l.VATRate.IsNegative() || l.VATRate.GreaterThan(types.Hundred()) {
		return apperror.NewFieldValidation("items.vatRate", "VAT rate must be between 0 and 100")
	}
	if exceedsPlaces(l.VATRate, vatRatePlaces) {
		return apperror.NewFieldValidation("items.vatRate", "VAT rate has more than 2 decimal places")
	}

	if l.Fodec != nil && (l.Fodec.Rate.IsNegative() || l.Fodec.Rate.GreaterThan(maxFodecRate)) {
		return apperror.NewFieldValidation("items.fodec.rate", "FODEC rate must be between 0 and 1")
	}
	if l.Fodec != nil && exceedsPlaces(l.Fodec.Rate, fodecRatePlaces) {
		return apperror.NewFieldValidation("items.fodec.rate", "FODEC rate has more than 4 decimal places")
	}

	return nil
}

// itemsEqual reports whether two item lists have the same content in the same order.
func itemsEqual(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].sameContent(b[i]) {
			return false
		}
	}
	return true
}

// deriveFrom builds the document created by converting src into target.
// Lines are copied by value so the source is never shared.
func deriveFrom(src *Document, target Kind, companyID id.ID, userID string, now time.Time) *Document {
	dst := NewDocument(companyID, userID, target)
	dst.Init(userID, now)
	dst.Date = now
	dst.Notes = src.Notes
	dst.CounterpartyID = clonePtr(src.CounterpartyID)
	dst.CounterpartyName = src.CounterpartyName
	dst.Currency = src.Currency
	dst.StampIncluded = src.StampIncluded
	dst.DerivedFromID = id.Ptr(src.ID)
	if src.Discount != nil {
		disc := *src.Discount
		dst.Discount = &disc
	}
	if target.IsCreditNote() {
		dst.SourceDocumentID = id.Ptr(src.ID)
	}

	dst.Items = make([]LineItem, len(src.Items))
	for i, l := range src.Items {
		l.ID = id.Nil()
		l.ProductID = clonePtr(l.ProductID)
		if l.Fodec != nil {
			f := *l.Fodec
			l.Fodec = &f
		}
		dst.Items[i] = l
	}

	dst.Recalculate()
	return dst
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (d *Document) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Number)
}
