package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/domain"
	"facturo/internal/domain/currency"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/totals"
)

// --- Request DTOs ---

// LineItemRequest is one document line as sent by the client.
// A nil fodec exempts the line. {"rate": 0} or {} applies the default rate
// (1%); there is no explicit zero-rate FODEC line. Quantity and unitPrice take
// at most 3 decimal places, vatRate 2 and fodec.rate 4.
type LineItemRequest struct {
	ProductID   string          `json:"productId"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
	Fodec       *totals.Fodec   `json:"fodec"`
}

func (r LineItemRequest) toLineItem(lineNo int) (documents.LineItem, error) {
	var productID *id.ID
	if r.ProductID != "" {
		v, err := id.Parse(r.ProductID)
		if err != nil {
			return documents.LineItem{}, apperror.NewFieldValidation("items.productId", "invalid id format").
				WithDetail("lineNo", lineNo)
		}
		productID = &v
	}
	return documents.LineItem{
		ProductID:   productID,
		Reference:   r.Reference,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		VATRate:     r.VATRate,
		Fodec:       r.Fodec,
	}, nil
}

// DocumentContent holds the editable fields shared by create and update.
type DocumentContent struct {
	Date             *time.Time        `json:"date"`
	DueDate          *time.Time        `json:"dueDate"`
	CounterpartyID   string            `json:"counterpartyId"`
	CounterpartyName string            `json:"counterpartyName"`
	Currency         string            `json:"currency"`
	Notes            string            `json:"notes"`
	Discount         *totals.Discount  `json:"discount"`
	StampIncluded    bool              `json:"stampIncluded"`
	Items            []LineItemRequest `json:"items"`
}

func (r DocumentContent) apply(doc *documents.Document) error {
	counterpartyID, err := parseOptionalID("counterpartyId", r.CounterpartyID)
	if err != nil {
		return err
	}

	doc.Date = time.Time{}
	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		doc.DueDate = &due
	}
	doc.CounterpartyID = counterpartyID
	doc.CounterpartyName = strings.TrimSpace(r.CounterpartyName)
	doc.Currency = r.Currency
	doc.Notes = r.Notes
	doc.Discount = r.Discount
	doc.StampIncluded = r.StampIncluded

	doc.Items = make([]documents.LineItem, len(r.Items))
	for i, item := range r.Items {
		line, err := item.toLineItem(i + 1)
		if err != nil {
			return err
		}
		doc.Items[i] = line
	}
	return nil
}

// CreateDocumentRequest creates a draft document.
type CreateDocumentRequest struct {
	Kind string `json:"kind" binding:"required"`
	DocumentContent
}

// ToDocument builds the domain document. Totals are left to the service.
func (r CreateDocumentRequest) ToDocument(tc tenant.TenantContext) (*documents.Document, error) {
	kind := documents.Kind(r.Kind)
	if !kind.Valid() {
		return nil, apperror.NewFieldValidation("kind", "unknown document kind").WithDetail("value", r.Kind)
	}

	doc := documents.NewDocument(tc.CompanyID, tc.UserID, kind)
	if err := r.apply(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocumentRequest replaces the content of a draft.
type UpdateDocumentRequest struct {
	DocumentContent
	Version int `json:"version" binding:"required,min=1"`
}

// ToDocument builds the replacement content for docID.
func (r UpdateDocumentRequest) ToDocument(docID id.ID) (*documents.Document, error) {
	doc := &documents.Document{}
	doc.ID = docID
	doc.Version = r.Version
	if err := r.apply(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ConvertDocumentRequest converts a document into another kind.
type ConvertDocumentRequest struct {
	Target string `json:"target" binding:"required"`
}

// ChangeStatusRequest moves a document along the status chart.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListDocumentsQuery is the query string of GET /documents.
type ListDocumentsQuery struct {
	Kind           string     `form:"kind"`
	Status         string     `form:"status"`
	CounterpartyID string     `form:"counterpartyId"`
	DateFrom       *time.Time `form:"dateFrom" time_format:"2006-01-02" time_utc:"1"`
	DateTo         *time.Time `form:"dateTo" time_format:"2006-01-02" time_utc:"1"`
	Search         string     `form:"search"`
	IDs            []string   `form:"ids"`
	IncludeDeleted bool       `form:"includeDeleted"`
	OrderBy        string     `form:"orderBy"`
	Limit          int        `form:"limit" binding:"min=0,max=200"`
	Offset         int        `form:"offset" binding:"min=0"`
}

// ToFilter converts the query to a repository filter.
func (q ListDocumentsQuery) ToFilter() (documents.ListFilter, error) {
	filter := documents.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = strings.TrimSpace(q.Search)
	filter.IncludeDeleted = q.IncludeDeleted
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	filter.Offset = q.Offset

	if q.Kind != "" {
		kind := documents.Kind(q.Kind)
		if !kind.Valid() {
			return filter, apperror.NewFieldValidation("kind", "unknown document kind").WithDetail("value", q.Kind)
		}
		filter.Kind = &kind
	}
	if q.Status != "" {
		status := documents.Status(q.Status)
		if !status.Valid() {
			return filter, apperror.NewFieldValidation("status", "unknown status").WithDetail("value", q.Status)
		}
		filter.Status = &status
	}

	counterpartyID, err := parseOptionalID("counterpartyId", q.CounterpartyID)
	if err != nil {
		return filter, err
	}
	filter.CounterpartyID = counterpartyID

	for _, raw := range q.IDs {
		v, err := id.Parse(raw)
		if err != nil {
			return filter, fieldError("ids", "invalid id format")
		}
		filter.IDs = append(filter.IDs, v)
	}

	filter.DateFrom = q.DateFrom
	if q.DateTo != nil {
		// inclusive day
		end := q.DateTo.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}
	return filter, nil
}

// --- Response DTOs ---

// LineItemResponse is one line with its derived amounts.
type LineItemResponse struct {
	ID          string          `json:"id"`
	LineNo      int             `json:"lineNo"`
	ProductID   *string         `json:"productId,omitempty"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
	Fodec       *totals.Fodec   `json:"fodec,omitempty"`
	Total       decimal.Decimal `json:"total"`
	FodecAmount decimal.Decimal `json:"fodecAmount"`
	VATAmount   decimal.Decimal `json:"vatAmount"`
}

// DocumentResponse is the API view of a document. Amounts are rounded to
// the document currency.
type DocumentResponse struct {
	ID                string             `json:"id"`
	Kind              string             `json:"kind"`
	Status            string             `json:"status"`
	Number            string             `json:"number"`
	Date              time.Time          `json:"date"`
	DueDate           *time.Time         `json:"dueDate,omitempty"`
	CounterpartyID    *string            `json:"counterpartyId,omitempty"`
	CounterpartyName  string             `json:"counterpartyName"`
	Currency          string             `json:"currency"`
	Notes             string             `json:"notes,omitempty"`
	Discount          *totals.Discount   `json:"discount,omitempty"`
	StampIncluded     bool               `json:"stampIncluded"`
	SourceDocumentID  *string            `json:"sourceDocumentId,omitempty"`
	DerivedFromID     *string            `json:"derivedFromId,omitempty"`
	Locked            bool               `json:"locked"`
	LockedAt          *time.Time         `json:"lockedAt,omitempty"`
	StockApplied      bool               `json:"stockApplied"`
	Totals            totals.Totals      `json:"totals"`
	Items             []LineItemResponse `json:"items"`
	NextStatuses      []string           `json:"nextStatuses"`
	ConversionTargets []string           `json:"conversionTargets"`
	DeletionMark      bool               `json:"deletionMark"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	CreatedBy         string             `json:"createdBy,omitempty"`
	UpdatedBy         string             `json:"updatedBy,omitempty"`
}

// FromDocument creates DocumentResponse from documents.Document.
func FromDocument(d *documents.Document) DocumentResponse {
	places := currency.Lookup(d.Currency).DecimalPlaces

	resp := DocumentResponse{
		ID:                d.ID.String(),
		Kind:              string(d.Kind),
		Status:            string(d.Status),
		Number:            d.Number,
		Date:              d.Date,
		DueDate:           d.DueDate,
		CounterpartyID:    idString(d.CounterpartyID),
		CounterpartyName:  d.CounterpartyName,
		Currency:          d.Currency,
		Notes:             d.Notes,
		Discount:          d.Discount,
		StampIncluded:     d.StampIncluded,
		SourceDocumentID:  idString(d.SourceDocumentID),
		DerivedFromID:     idString(d.DerivedFromID),
		Locked:            d.Locked,
		LockedAt:          d.LockedAt,
		StockApplied:      d.StockApplied,
		Totals:            d.Totals.Round(places),
		Items:             make([]LineItemResponse, len(d.Items)),
		NextStatuses:      make([]string, 0),
		ConversionTargets: make([]string, 0),
		DeletionMark:      d.DeletionMark,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		CreatedBy:         d.CreatedBy,
		UpdatedBy:         d.UpdatedBy,
	}

	for i, l := range d.Items {
		resp.Items[i] = LineItemResponse{
			ID:          l.ID.String(),
			LineNo:      l.LineNo,
			ProductID:   idString(l.ProductID),
			Reference:   l.Reference,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			VATRate:     l.VATRate,
			Fodec:       l.Fodec,
			Total:       l.Total.Round(places),
			FodecAmount: l.FodecAmount.Round(places),
			VATAmount:   l.VATAmount.Round(places),
		}
	}

	for _, s := range d.Kind.NextStatuses(d.Status) {
		resp.NextStatuses = append(resp.NextStatuses, string(s))
	}
	if d.Status != documents.StatusCancelled {
		for _, k := range d.Kind.ConversionTargets() {
			resp.ConversionTargets = append(resp.ConversionTargets, string(k))
		}
	}

	return resp
}

// FromDocuments converts a list of documents.
func FromDocuments(docs []*documents.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = FromDocument(d)
	}
	return out
}

// OutcomeResponse is returned by operations that may move stock.
type OutcomeResponse struct {
	Document DocumentResponse   `json:"document"`
	LowStock []LowStockResponse `json:"lowStock,omitempty"`
}

// FromOutcome converts a service outcome.
func FromOutcome(o documents.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Document: FromDocument(o.Document),
		LowStock: FromLowStock(o.LowStock),
	}
}

func idString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func fieldError(field, message string) error {
	return apperror.NewFieldValidation(field, message)
}
