package register_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturo/internal/core/id"
	"facturo/internal/domain/registers/stock"
)

func TestDecrementQuery_IsGuarded(t *testing.T) {
	r := NewStockRepo()
	companyID, productID := id.New(), id.New()
	qty := decimal.NewFromInt(3)

	sql, args, err := r.decrementQuery(companyID, productID, qty).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE products SET quantity = quantity - $1, updated_at = NOW() "+
			"WHERE company_id = $2 AND id = $3 AND quantity >= $4 "+
			"RETURNING id, name, quantity, min_quantity",
		sql)
	// Expr keeps its argument; Eq and GtOrEq pass theirs through driver.Valuer.
	assert.Equal(t, []any{qty, companyID.String(), productID.String(), "3"}, args)
}

func TestIncrementQuery_IsUnconditional(t *testing.T) {
	r := NewStockRepo()

	sql, _, err := r.incrementQuery(id.New(), id.New(), decimal.NewFromInt(1)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "quantity = quantity + $1")
	assert.NotContains(t, sql, ">=")
}

func TestMovementValues_MatchColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "company_id", "product_id", "document_id", "direction",
		"quantity", "note", "created_by", "created_at",
	}, movementColumns)

	m := stock.Movement{
		ID:        id.New(),
		Direction: stock.DirectionOut,
		Quantity:  decimal.NewFromInt(2),
		Note:      "FAC-2026-00001",
		CreatedAt: time.Now(),
	}
	values := movementValues(m)
	require.Len(t, values, len(movementColumns))
	assert.Equal(t, "out", values[4])
	assert.Equal(t, "FAC-2026-00001", values[6])
}

func TestLevelColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "quantity", "min_quantity"}, levelColumns)
}
