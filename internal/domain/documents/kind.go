// Package documents implements the commercial document lifecycle: creation,
// editing, status changes and conversion along the sale and purchase chains.
package documents

import (
	"slices"

	"facturo/internal/core/numerator"
	"facturo/internal/domain/registers/stock"
)

// Kind identifies a commercial document type.
type Kind string

const (
	KindQuote          Kind = "quote"
	KindSaleOrder      Kind = "sale_order"
	KindSaleDelivery   Kind = "sale_delivery"
	KindSaleInvoice    Kind = "sale_invoice"
	KindSaleCreditNote Kind = "sale_credit_note"

	KindPurchaseQuote      Kind = "purchase_quote"
	KindPurchaseOrder      Kind = "purchase_order"
	KindPurchaseDelivery   Kind = "purchase_delivery"
	KindPurchaseInvoice    Kind = "purchase_invoice"
	KindPurchaseCreditNote Kind = "purchase_credit_note"
)

// Side tells whether a document belongs to the sale or purchase chain.
type Side string

const (
	SideSale     Side = "sale"
	SidePurchase Side = "purchase"
)

type kindSpec struct {
	side     Side
	prefix   string
	effect   stock.Effect
	statuses []Status
	targets  []Kind
}

var (
	commercialStatuses = []Status{StatusDraft, StatusSent, StatusCancelled}
	invoiceStatuses    = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}
	creditStatuses     = []Status{StatusDraft, StatusSent, StatusPaid, StatusCancelled}
)

var kinds = map[Kind]kindSpec{
	KindQuote: {
		side: SideSale, prefix: "DEV", statuses: commercialStatuses,
		targets: []Kind{KindSaleOrder, KindSaleInvoice},
	},
	KindSaleOrder: {
		side: SideSale, prefix: "BC", statuses: commercialStatuses,
		targets: []Kind{KindSaleDelivery, KindSaleInvoice},
	},
	KindSaleDelivery: {
		side: SideSale, prefix: "BL", statuses: commercialStatuses,
		targets: []Kind{KindSaleInvoice},
	},
	KindSaleInvoice: {
		side: SideSale, prefix: "FAC", statuses: invoiceStatuses, effect: stock.EffectExit,
		targets: []Kind{KindSaleCreditNote},
	},
	KindSaleCreditNote: {
		side: SideSale, prefix: "AV", statuses: creditStatuses,
	},
	// purchase_quote never moves stock; the purchase chain only does so at the invoice.
	KindPurchaseQuote: {
		side: SidePurchase, prefix: "DA", statuses: commercialStatuses,
		targets: []Kind{KindPurchaseOrder},
	},
	KindPurchaseOrder: {
		side: SidePurchase, prefix: "BCF", statuses: commercialStatuses,
		targets: []Kind{KindPurchaseDelivery, KindPurchaseInvoice},
	},
	KindPurchaseDelivery: {
		side: SidePurchase, prefix: "BR", statuses: commercialStatuses,
		targets: []Kind{KindPurchaseInvoice},
	},
	KindPurchaseInvoice: {
		side: SidePurchase, prefix: "FACF", statuses: invoiceStatuses, effect: stock.EffectEntry,
		targets: []Kind{KindPurchaseCreditNote},
	},
	KindPurchaseCreditNote: {
		side: SidePurchase, prefix: "AVF", statuses: creditStatuses,
	},
}

// AllKinds lists every kind in chain order.
func AllKinds() []Kind {
	return []Kind{
		KindQuote, KindSaleOrder, KindSaleDelivery, KindSaleInvoice, KindSaleCreditNote,
		KindPurchaseQuote, KindPurchaseOrder, KindPurchaseDelivery, KindPurchaseInvoice, KindPurchaseCreditNote,
	}
}

// KindsAllowing lists the kinds for which s is a legal status.
func KindsAllowing(s Status) []Kind {
	var out []Kind
	for _, k := range AllKinds() {
		if k.AllowsStatus(s) {
			out = append(out, k)
		}
	}
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Side returns the chain the kind belongs to.
func (k Kind) Side() Side { return kinds[k].side }

// Prefix returns the numbering prefix (e.g. "FAC").
func (k Kind) Prefix() string { return kinds[k].prefix }

// StockEffect returns the stock movement the kind implies.
func (k Kind) StockEffect() stock.Effect { return kinds[k].effect }

func (k Kind) IsInvoice() bool {
	return k == KindSaleInvoice || k == KindPurchaseInvoice
}

func (k Kind) IsCreditNote() bool {
	return k == KindSaleCreditNote || k == KindPurchaseCreditNote
}

// NumberingStrategy returns the numbering strategy of the kind.
// Invoices and credit notes must be gap-free.
func (k Kind) NumberingStrategy() numerator.Strategy {
	if k.IsInvoice() || k.IsCreditNote() {
		return numerator.StrategyStrict
	}
	return numerator.StrategyCached
}

// AllowsStatus reports whether s is legal for the kind.
func (k Kind) AllowsStatus(s Status) bool {
	return slices.Contains(kinds[k].statuses, s)
}

// ConversionTargets returns the kinds k may be converted into.
func (k Kind) ConversionTargets() []Kind {
	return slices.Clone(kinds[k].targets)
}

// CanConvertTo reports whether the edge k → target is declared.
func (k Kind) CanConvertTo(target Kind) bool {
	return slices.Contains(kinds[k].targets, target)
}

// NextStatuses lists the statuses a document of kind k may move to from s.
func (k Kind) NextStatuses(from Status) []Status {
	var next []Status
	for _, s := range transitions[from] {
		if k.AllowsStatus(s) {
			next = append(next, s)
		}
	}
	return next
}
