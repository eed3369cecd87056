package document_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturo/internal/core/id"
	"facturo/internal/domain"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/totals"
)

func TestListConditions(t *testing.T) {
	companyID := id.New()
	kind := documents.KindSaleInvoice
	status := documents.StatusSent
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := documents.ListFilter{
		ListFilter: domain.ListFilter{Search: " FAC "},
		Kind:       &kind,
		Status:     &status,
		DateFrom:   &from,
	}

	sql, args, err := squirrel.Select("id").From(documentsTable).
		Where(listConditions(companyID, filter)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "company_id = $1")
	assert.Contains(t, sql, "deletion_mark = $2")
	assert.Contains(t, sql, "kind = $3")
	assert.Contains(t, sql, "status = $4")
	assert.Contains(t, sql, "date >= $5")
	assert.Contains(t, sql, "number ILIKE $6")
	assert.Equal(t, []any{companyID.String(), false, kind, status, from, "%FAC%", "%FAC%", "%FAC%"}, args)
}

func TestListConditions_IncludeDeleted(t *testing.T) {
	filter := documents.ListFilter{ListFilter: domain.ListFilter{IncludeDeleted: true}}

	sql, _, err := squirrel.Select("id").From(documentsTable).
		Where(listConditions(id.New(), filter)).
		ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "deletion_mark")
}

func TestOverdueQuery(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	kinds := []documents.Kind{documents.KindSaleInvoice, documents.KindPurchaseInvoice}

	sql, args, err := overdueQuery(NewDocumentRepo().builder, kinds, asOf, 10).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT company_id, id FROM documents")
	assert.Contains(t, sql, "deletion_mark = $1")
	assert.Contains(t, sql, "kind IN ($2,$3)")
	assert.Contains(t, sql, "status = $4")
	assert.Contains(t, sql, "due_date < $5")
	assert.Contains(t, sql, "ORDER BY due_date, id LIMIT 10")
	assert.Equal(t, []any{false, kinds[0], kinds[1], documents.StatusSent, asOf}, args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "date DESC", orderBy("-date"))
	assert.Equal(t, "number ASC", orderBy("number"))
	assert.Equal(t, "total DESC", orderBy("-total"))
	assert.Equal(t, "date DESC", orderBy("name; DROP TABLE documents"))
	assert.Equal(t, "date DESC", orderBy(""))
}

func TestItemRow_RoundTrip(t *testing.T) {
	docID := id.New()
	product := id.New()

	withFodec := documents.LineItem{
		ID: id.New(), LineNo: 1, ProductID: &product,
		Quantity:  decimal.NewFromInt(2),
		UnitPrice: decimal.RequireFromString("10.5"),
		VATRate:   decimal.NewFromInt(19),
		Fodec:     &totals.Fodec{Rate: decimal.RequireFromString("0.01")},
	}
	row := toItemRow(docID, withFodec)
	assert.Equal(t, docID, row.DocumentID)
	assert.True(t, row.FodecApplied)
	assert.True(t, row.FodecRate.Valid)
	assert.Equal(t, withFodec, row.toLineItem())
	assert.Len(t, row.copyValues(), len(itemColumns))

	plain := documents.LineItem{ID: id.New(), LineNo: 2, Description: "Transport"}
	row = toItemRow(docID, plain)
	assert.False(t, row.FodecApplied)
	assert.False(t, row.FodecRate.Valid)
	assert.Nil(t, row.toLineItem().Fodec)
}

func TestNewDocumentRepo_Columns(t *testing.T) {
	r := NewDocumentRepo()
	for _, col := range []string{"id", "company_id", "number", "kind", "status", "discount", "subtotal", "total_fodec", "stamp", "total", "stock_applied"} {
		assert.Contains(t, r.columns, col)
	}
	assert.NotContains(t, r.columns, "items")
}
