package middleware

import (
	"github.com/gin-gonic/gin"

	"facturo/internal/core/apperror"
	"facturo/internal/core/tenant"
)

// RequireWrite rejects callers whose role is read-only.
// Services check the role again; this keeps viewers from reaching them.
func RequireWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := GetTenant(c)
		if !ok {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		if err := tc.RequireWrite(); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole middleware checks that the caller has one of the roles.
func RequireRole(roles ...tenant.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := GetTenant(c)
		if !ok {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		for _, required := range roles {
			if tc.Role == required {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}
