package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"facturo/internal/core/entity"
	"facturo/internal/core/id"
)

type MockAmounts struct {
	Net decimal.Decimal `db:"net"`
	Tax decimal.Decimal `db:"tax"`
}

type mockDocument struct {
	entity.Document
	MockAmounts

	Kind    string     `db:"kind"`
	DueDate *time.Time `db:"due_date"`
	Lines   []string   `db:"-"`
	scratch int
}

func TestExtractDBColumns_FlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	for _, expected := range []string{
		"id", "deletion_mark", "version", "created_at", "updated_by",
		"company_id", "number", "date", "locked", "locked_at",
		"net", "tax", "kind", "due_date",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "")
	assert.Equal(t, "id", cols[0])
}

func TestStructToMap(t *testing.T) {
	doc := mockDocument{
		Document: entity.Document{
			BaseDocument: entity.BaseDocument{
				BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3},
			},
			Number: "FAC-2026-00001",
		},
		MockAmounts: MockAmounts{Net: decimal.NewFromInt(100)},
		Kind:        "sale_invoice",
		scratch:     1,
	}

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "FAC-2026-00001", m["number"])
	assert.Equal(t, "sale_invoice", m["kind"])
	assert.True(t, m["net"].(decimal.Decimal).Equal(decimal.NewFromInt(100)))
	assert.Nil(t, m["due_date"].(*time.Time))
	assert.NotContains(t, m, "Lines")
	assert.Len(t, m, len(ExtractDBColumns[mockDocument]()))
}

func TestPickColumns(t *testing.T) {
	data := map[string]any{"id": 1, "kind": "quote", "version": 2, "extra": true}

	got := PickColumns(data, []string{"id", "kind", "version", "missing"}, "version")

	assert.Equal(t, map[string]any{"id": 1, "kind": "quote"}, got)
}
