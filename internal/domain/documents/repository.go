package documents

import (
	"context"
	"time"

	"facturo/internal/core/id"
	"facturo/internal/domain"
)

// Repository defines storage operations for documents.
// Every read is scoped to a company; a document of another company is NOT_FOUND.
type Repository interface {
	// Create inserts the header and its items.
	Create(ctx context.Context, doc *Document) error

	// GetByID loads a document with its items.
	GetByID(ctx context.Context, companyID, docID id.ID) (*Document, error)

	// GetForUpdate loads a document with its items and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, companyID, docID id.ID) (*Document, error)

	// Update writes the header. It fails with CONCURRENT_MODIFICATION when
	// doc.Version is stale, and bumps doc.Version on success.
	Update(ctx context.Context, doc *Document) error

	// SaveItems replaces the items of a document.
	SaveItems(ctx context.Context, docID id.ID, items []LineItem) error

	// Delete soft-deletes a document.
	Delete(ctx context.Context, companyID, docID id.ID) error

	List(ctx context.Context, companyID id.ID, filter ListFilter) (domain.ListResult[*Document], error)

	// FindDerived lists documents converted from sourceID, optionally of one kind only.
	FindDerived(ctx context.Context, companyID, sourceID id.ID, kind *Kind) ([]*Document, error)

	// FindOverdue lists sent documents of the given kinds, in every company,
	// whose due date is before asOf. Oldest due dates come first.
	FindOverdue(ctx context.Context, kinds []Kind, asOf time.Time, limit int) ([]OverdueRef, error)
}

// OverdueRef points at a document whose due date has passed.
type OverdueRef struct {
	CompanyID id.ID `db:"company_id"`
	ID        id.ID `db:"id"`
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	Kind           *Kind
	Status         *Status
	CounterpartyID *id.ID
	DateFrom       *time.Time
	DateTo         *time.Time
}
