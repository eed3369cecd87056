// Package stock keeps product quantities in step with the documents that move goods.
package stock

import (
	"time"

	"facturo/internal/core/id"
	"facturo/internal/core/types"
)

// Effect is the stock side-effect of a document kind.
type Effect string

const (
	EffectNone  Effect = ""
	EffectEntry Effect = "entry"
	EffectExit  Effect = "exit"
)

// Reverse returns the effect that undoes e.
func (e Effect) Reverse() Effect {
	switch e {
	case EffectEntry:
		return EffectExit
	case EffectExit:
		return EffectEntry
	}
	return EffectNone
}

// Direction of a recorded movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Line is one product quantity moved by a document. Lines without a product
// (free-text lines) carry a nil ProductID and do not move stock.
type Line struct {
	ProductID *id.ID
	Quantity  types.Quantity
}

// Request asks the coordinator to apply a document's effect.
type Request struct {
	DocumentID     id.ID
	DocumentNumber string
	Effect         Effect
	Lines          []Line
}

// Level is the current stock of a product.
type Level struct {
	ProductID   id.ID          `db:"id" json:"productId"`
	Name        string         `db:"name" json:"name"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	MinQuantity types.Quantity `db:"min_quantity" json:"minQuantity"`
}

// IsLow reports whether the level reached its alert threshold.
func (l Level) IsLow() bool {
	return l.Quantity.LessThanOrEqual(l.MinQuantity)
}

// Movement is an append-only record of a stock change.
type Movement struct {
	ID         id.ID          `db:"id" json:"id"`
	CompanyID  id.ID          `db:"company_id" json:"companyId"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	DocumentID id.ID          `db:"document_id" json:"documentId"`
	Direction  Direction      `db:"direction" json:"direction"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	Note       string         `db:"note" json:"note"`
	CreatedBy  string         `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// LowStockAlert is raised when a product falls to or below its minimum.
type LowStockAlert struct {
	ProductID   id.ID          `json:"productId"`
	Name        string         `json:"name"`
	Quantity    types.Quantity `json:"quantity"`
	MinQuantity types.Quantity `json:"minQuantity"`
}

// Shortage describes a product that cannot cover the requested exit.
type Shortage struct {
	ProductID id.ID          `json:"productId"`
	Name      string         `json:"name,omitempty"`
	Requested types.Quantity `json:"requested"`
	Available types.Quantity `json:"available"`
}

// Result is what a successful Apply produced.
type Result struct {
	Movements []Movement      `json:"movements"`
	LowStock  []LowStockAlert `json:"lowStock,omitempty"`
}
