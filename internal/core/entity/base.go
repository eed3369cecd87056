package entity

import (
	"context"
	"time"

	"facturo/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without database access.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains the fields every persisted entity shares.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// DeletionMark indicates soft-deleted entity
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// Version for optimistic locking (incremented by the repository on each update)
	Version int `db:"version" json:"version"`
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// BaseDocument extends BaseEntity with audit fields.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a new BaseDocument with generated ID and timestamps.
func NewBaseDocument(userID string) BaseDocument {
	var b BaseDocument
	b.Init(userID, time.Now().UTC())
	return b
}

// Init gives a record a fresh identity and its creation stamp.
func (b *BaseDocument) Init(userID string, at time.Time) {
	b.ID = id.New()
	b.Version = 1
	b.DeletionMark = false
	b.CreatedAt, b.UpdatedAt = at, at
	b.CreatedBy, b.UpdatedBy = userID, userID
}

// Touch records who changed the document and when.
func (b *BaseDocument) Touch(userID string, at time.Time) {
	b.UpdatedAt = at
	b.UpdatedBy = userID
}
