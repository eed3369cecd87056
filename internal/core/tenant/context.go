package tenant

import (
	"context"
	"errors"

	"facturo/internal/core/tx"
)

type ctxKey int

const (
	txManagerKey ctxKey = iota
	tenantKey
)

// ErrNoTxManager is returned when no transaction manager was injected.
var ErrNoTxManager = errors.New("transaction manager not found in context")

// WithTxManager stores TxManager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves TxManager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// MustGetTxManager retrieves TxManager or panics.
func MustGetTxManager(ctx context.Context) tx.Manager {
	txm, err := GetTxManager(ctx)
	if err != nil {
		panic("TxManager not in context: " + err.Error())
	}
	return txm
}

// WithTenant stores the caller identity in context. Services still receive
// TenantContext as an argument; the context copy only feeds logging.
func WithTenant(ctx context.Context, t TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// FromContext returns the caller identity stored by WithTenant.
func FromContext(ctx context.Context) (TenantContext, bool) {
	t, ok := ctx.Value(tenantKey).(TenantContext)
	return t, ok
}
