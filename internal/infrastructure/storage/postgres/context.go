package postgres

import (
	"context"
	"fmt"

	"facturo/internal/core/tenant"
)

// MustGetTxManager returns the *TxManager stored in ctx by the HTTP layer.
// It is meant for repositories that need GetQuerier()/GetTx().
//
// Domain code should depend only on internal/core/tx.Manager.
func MustGetTxManager(ctx context.Context) *TxManager {
	txm := tenant.MustGetTxManager(ctx)
	pgTxm, ok := txm.(*TxManager)
	if !ok || pgTxm == nil {
		panic(fmt.Sprintf("TxManager in context has unexpected type: %T", txm))
	}
	return pgTxm
}
