package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService(DefaultJWTConfig("secret"))
	tc := tenant.New(id.New(), "user-1", tenant.RoleAccountant)

	token, expiresAt, err := s.GenerateToken(tc)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	got, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, tc, got)
}

func TestJWTService_Rejects(t *testing.T) {
	s := NewJWTService(DefaultJWTConfig("secret"))
	tc := tenant.New(id.New(), "user-1", tenant.RoleAdmin)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("other"))
		token, _, err := other.GenerateToken(tc)
		require.NoError(t, err)

		_, err = s.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewJWTService(DefaultJWTConfig("secret"))
		old.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, _, err := old.GenerateToken(tc)
		require.NoError(t, err)

		_, err = s.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, _, err := s.GenerateToken(tenant.New(tc.CompanyID, "user-1", tenant.Role("owner")))
		require.NoError(t, err)

		_, err = s.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
