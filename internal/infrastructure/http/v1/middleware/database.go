package middleware

import (
	"github.com/gin-gonic/gin"

	"facturo/internal/core/tenant"
	"facturo/internal/core/tx"
)

// Database injects the transaction manager into the request context.
// Repositories resolve their querier from it, so it must run before any
// handler that touches storage.
func Database(txm tx.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tenant.WithTxManager(c.Request.Context(), txm)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
