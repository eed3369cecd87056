package documents

import (
	"context"

	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/domain/totals"
)

// Audit actions recorded by the service.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionConvert = "convert"
	ActionStatus  = "status"
)

// AuditEntityType is the entity type of document audit entries.
const AuditEntityType = "document"

// Auditor records document changes. Calls run inside the business transaction.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Observer receives business events after a successful commit.
type Observer interface {
	DocumentCreated(kind string)
	DocumentConverted(from, to string)
	StatusChanged(kind, status string)
	StockRejected(kind string)
	LowStock(alerts int)
}

// StockCoordinator applies document stock effects.
type StockCoordinator interface {
	Apply(ctx context.Context, tc tenant.TenantContext, req stock.Request) (stock.Result, error)
	Reverse(ctx context.Context, tc tenant.TenantContext, req stock.Request) (stock.Result, error)
	Movements(ctx context.Context, tc tenant.TenantContext, documentID id.ID) ([]stock.Movement, error)
}

type nopAuditor struct{}

func (nopAuditor) LogChange(context.Context, string, id.ID, string, map[string]any) error {
	return nil
}

type nopObserver struct{}

func (nopObserver) DocumentCreated(string)           {}
func (nopObserver) DocumentConverted(string, string) {}
func (nopObserver) StatusChanged(string, string)     {}
func (nopObserver) StockRejected(string)             {}
func (nopObserver) LowStock(int)                     {}

var _ StockCoordinator = (*stock.Coordinator)(nil)

// snapshot is the audited view of a document.
func snapshot(d *Document) map[string]any {
	return map[string]any{
		"number":        d.Number,
		"kind":          string(d.Kind),
		"status":        string(d.Status),
		"date":          d.Date.Format("2006-01-02"),
		"counterparty":  d.CounterpartyName,
		"currency":      d.Currency,
		"stampIncluded": d.StampIncluded,
		"discount":      discountLabel(d.Discount),
		"items":         len(d.Items),
		"total":         d.Total.String(),
		"notes":         d.Notes,
	}
}

// changedFields returns {field: {old, new}} for every field that differs.
func changedFields(before, after map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range after {
		// snapshot values are comparable scalars
		if oldVal := before[key]; oldVal != newVal {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	return changes
}

func discountLabel(d *totals.Discount) string {
	if d == nil {
		return ""
	}
	return string(d.Type) + ":" + d.Value.String()
}
