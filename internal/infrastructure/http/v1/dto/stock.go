package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"facturo/internal/domain/registers/stock"
)

// StockMovementResponse represents stock movement in API responses.
type StockMovementResponse struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	DocumentID string          `json:"documentId"`
	Direction  string          `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	Note       string          `json:"note,omitempty"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// FromStockMovement converts entity to response DTO.
func FromStockMovement(m stock.Movement) StockMovementResponse {
	return StockMovementResponse{
		ID:         m.ID.String(),
		ProductID:  m.ProductID.String(),
		DocumentID: m.DocumentID.String(),
		Direction:  string(m.Direction),
		Quantity:   m.Quantity,
		Note:       m.Note,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
	}
}

// FromStockMovements converts a list of movements.
func FromStockMovements(ms []stock.Movement) []StockMovementResponse {
	out := make([]StockMovementResponse, len(ms))
	for i, m := range ms {
		out[i] = FromStockMovement(m)
	}
	return out
}

// LowStockResponse is a product that reached its alert threshold.
type LowStockResponse struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"minQuantity"`
}

// FromLowStock converts alerts to response DTOs.
func FromLowStock(alerts []stock.LowStockAlert) []LowStockResponse {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]LowStockResponse, len(alerts))
	for i, a := range alerts {
		out[i] = LowStockResponse{
			ProductID:   a.ProductID.String(),
			Name:        a.Name,
			Quantity:    a.Quantity,
			MinQuantity: a.MinQuantity,
		}
	}
	return out
}
