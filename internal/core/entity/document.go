package entity

import (
	"context"
	"time"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
)

// Document is the header shared by every commercial document.
type Document struct {
	BaseDocument

	// CompanyID scopes the document to its owning company
	CompanyID id.ID `db:"company_id" json:"companyId"`

	// Number is auto-generated, unique per company and kind
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	Notes string `db:"notes" json:"notes,omitempty"`

	// Locked is set once the document has been converted; its content is frozen from then on
	Locked   bool       `db:"locked" json:"locked"`
	LockedAt *time.Time `db:"locked_at" json:"lockedAt,omitempty"`
}

// NewDocument creates a new Document header for a company.
func NewDocument(companyID id.ID, userID string) Document {
	return Document{
		BaseDocument: NewBaseDocument(userID),
		CompanyID:    companyID,
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.CompanyID) {
		return apperror.NewFieldValidation("companyId", "company is required")
	}

	if d.Date.IsZero() {
		return apperror.NewFieldValidation("date", "date is required")
	}

	return nil
}

// CanModify checks if the document content may still change.
func (d *Document) CanModify() error {
	if d.Locked {
		return apperror.NewDocumentLocked(d.ID.String())
	}
	return nil
}

// Lock freezes the document. Locking twice keeps the first timestamp.
func (d *Document) Lock(at time.Time) {
	if d.Locked {
		return
	}
	d.Locked = true
	d.LockedAt = &at
}
