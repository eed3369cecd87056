package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"facturo/internal/core/apperror"
	"facturo/internal/core/tenant"
)

// KeyTenant is the gin context key holding the caller's TenantContext.
const KeyTenant = "tenant"

// TokenValidator turns a bearer token into the caller identity.
type TokenValidator interface {
	ValidateToken(token string) (tenant.TenantContext, error)
}

// Auth middleware validates the bearer token and stores the caller identity.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		tc, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		ctx := tenant.WithTenant(c.Request.Context(), tc)
		c.Request = c.Request.WithContext(ctx)
		c.Set(KeyTenant, tc)

		c.Next()
	}
}

// GetTenant returns the identity stored by Auth.
func GetTenant(c *gin.Context) (tenant.TenantContext, bool) {
	v, exists := c.Get(KeyTenant)
	if !exists {
		return tenant.TenantContext{}, false
	}
	tc, ok := v.(tenant.TenantContext)
	return tc, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
