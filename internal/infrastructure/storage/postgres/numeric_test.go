package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeric_KeepsExactValue(t *testing.T) {
	for _, s := range []string{"0", "1201.9", "-42.125", "0.001", "1000000"} {
		d := decimal.RequireFromString(s)
		n := Numeric(d)
		require.True(t, n.Valid)

		back := decimal.NewFromBigInt(n.Int, n.Exp)
		assert.True(t, back.Equal(d), s)
	}

	assert.False(t, NullNumeric(decimal.NullDecimal{}).Valid)
	assert.True(t, NullNumeric(decimal.NewNullDecimal(decimal.NewFromInt(1))).Valid)
}
