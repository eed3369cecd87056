package documents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) sentWithDue(t *testing.T, kind Kind, due time.Time) *Document {
	t.Helper()
	ctx := context.Background()
	out, err := f.svc.Create(ctx, f.tc, &Document{
		Kind:    kind,
		DueDate: &due,
		Items:   []LineItem{line(nil, "1", "100", "19")},
	})
	require.NoError(t, err)
	doc, err := f.svc.ChangeStatus(ctx, f.tc, out.Document.ID, StatusSent)
	require.NoError(t, err)
	return doc
}

func TestKindsAllowing(t *testing.T) {
	assert.Equal(t, []Kind{KindSaleInvoice, KindPurchaseInvoice}, KindsAllowing(StatusOverdue))
	assert.Len(t, KindsAllowing(StatusDraft), len(AllKinds()))
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := fixedNow.Add(24 * time.Hour)

	late := f.sentWithDue(t, KindSaleInvoice, due)
	notYet := f.sentWithDue(t, KindSaleInvoice, fixedNow.Add(30*24*time.Hour))
	quote := f.sentWithDue(t, KindQuote, due)
	paid := f.sentWithDue(t, KindPurchaseInvoice, due)
	_, err := f.svc.ChangeStatus(ctx, f.tc, paid.ID, StatusPaid)
	require.NoError(t, err)

	marked, err := f.svc.MarkOverdue(ctx, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.svc.Get(ctx, f.tc, late.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, got.Status)
	assert.Equal(t, SystemUser, got.UpdatedBy)

	for _, doc := range []*Document{notYet, quote} {
		got, err := f.svc.Get(ctx, f.tc, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, got.Status, doc.Kind)
	}

	// a second sweep finds nothing left
	marked, err = f.svc.MarkOverdue(ctx, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, marked)
}
