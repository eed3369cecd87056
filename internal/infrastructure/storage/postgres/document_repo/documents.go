// Package document_repo provides the PostgreSQL document repository.
// The TxManager is taken from context per request.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/domain"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/totals"
	"facturo/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "documents"
	itemsTable     = "document_items"
)

var itemColumns = []string{
	"id", "document_id", "line_no", "product_id", "reference", "description",
	"quantity", "unit_price", "vat_rate", "fodec_applied", "fodec_rate",
	"total", "fodec_amount", "vat_amount",
}

// sortColumns maps client sort keys to columns.
var sortColumns = map[string]string{
	"number":     "number",
	"date":       "date",
	"total":      "total",
	"status":     "status",
	"created_at": "created_at",
}

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	columns []string
	builder squirrel.StatementBuilderType
}

// NewDocumentRepo creates a new document repository.
func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{
		columns: postgres.ExtractDBColumns[documents.Document](),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ documents.Repository = (*DocumentRepo)(nil)

func (r *DocumentRepo) querier(ctx context.Context) postgres.Querier {
	return postgres.MustGetTxManager(ctx).GetQuerier(ctx)
}

// itemRow is the storage shape of a line item.
type itemRow struct {
	ID           id.ID               `db:"id"`
	DocumentID   id.ID               `db:"document_id"`
	LineNo       int                 `db:"line_no"`
	ProductID    *id.ID              `db:"product_id"`
	Reference    string              `db:"reference"`
	Description  string              `db:"description"`
	Quantity     decimal.Decimal     `db:"quantity"`
	UnitPrice    decimal.Decimal     `db:"unit_price"`
	VATRate      decimal.Decimal     `db:"vat_rate"`
	FodecApplied bool                `db:"fodec_applied"`
	FodecRate    decimal.NullDecimal `db:"fodec_rate"`
	Total        decimal.Decimal     `db:"total"`
	FodecAmount  decimal.Decimal     `db:"fodec_amount"`
	VATAmount    decimal.Decimal     `db:"vat_amount"`
}

func toItemRow(docID id.ID, l documents.LineItem) itemRow {
	row := itemRow{
		ID:          l.ID,
		DocumentID:  docID,
		LineNo:      l.LineNo,
		ProductID:   l.ProductID,
		Reference:   l.Reference,
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		VATRate:     l.VATRate,
		Total:       l.Total,
		FodecAmount: l.FodecAmount,
		VATAmount:   l.VATAmount,
	}
	if l.Fodec != nil {
		row.FodecApplied = true
		row.FodecRate = decimal.NewNullDecimal(l.Fodec.Rate)
	}
	return row
}

func (row itemRow) toLineItem() documents.LineItem {
	l := documents.LineItem{
		ID:          row.ID,
		LineNo:      row.LineNo,
		ProductID:   row.ProductID,
		Reference:   row.Reference,
		Description: row.Description,
		Quantity:    row.Quantity,
		UnitPrice:   row.UnitPrice,
		VATRate:     row.VATRate,
		Total:       row.Total,
		FodecAmount: row.FodecAmount,
		VATAmount:   row.VATAmount,
	}
	if row.FodecApplied {
		l.Fodec = &totals.Fodec{}
		if row.FodecRate.Valid {
			l.Fodec.Rate = row.FodecRate.Decimal
		}
	}
	return l
}

func (row itemRow) copyValues() []any {
	return []any{
		row.ID, row.DocumentID, row.LineNo, row.ProductID, row.Reference, row.Description,
		postgres.Numeric(row.Quantity), postgres.Numeric(row.UnitPrice), postgres.Numeric(row.VATRate),
		row.FodecApplied, postgres.NullNumeric(row.FodecRate),
		postgres.Numeric(row.Total), postgres.Numeric(row.FodecAmount), postgres.Numeric(row.VATAmount),
	}
}

// Create inserts the header and its items.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	data := postgres.PickColumns(postgres.StructToMap(doc), r.columns)

	sql, args, err := r.builder.Insert(documentsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("insert document", err)
	}

	return r.insertItems(ctx, doc.ID, doc.Items)
}

func (r *DocumentRepo) insertItems(ctx context.Context, docID id.ID, items []documents.LineItem) error {
	rows := postgres.Rows(items, func(l documents.LineItem) []any {
		return toItemRow(docID, l).copyValues()
	})

	inserter := postgres.NewBatchInserter(postgres.MustGetTxManager(ctx))
	if _, err := inserter.CopyFromSlice(ctx, itemsTable, itemColumns, rows); err != nil {
		return apperror.NewDatabase("copy document items", err)
	}
	return nil
}

func (r *DocumentRepo) selectDocument(companyID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(r.columns...).
		From(documentsTable).
		Where(squirrel.Eq{"company_id": companyID, "deletion_mark": false})
}

// GetByID loads a document with its items.
func (r *DocumentRepo) GetByID(ctx context.Context, companyID, docID id.ID) (*documents.Document, error) {
	return r.get(ctx, r.selectDocument(companyID).Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate loads a document and locks its row until the transaction ends.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, companyID, docID id.ID) (*documents.Document, error) {
	return r.get(ctx, r.selectDocument(companyID).Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *DocumentRepo) get(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (*documents.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &documents.Document{}
	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, apperror.NewDatabase("get document", err)
	}

	items, err := r.loadItems(ctx, docID)
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return doc, nil
}

func (r *DocumentRepo) loadItems(ctx context.Context, docID id.ID) ([]documents.LineItem, error) {
	sql, args, err := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select document items", err)
	}

	items := make([]documents.LineItem, len(rows))
	for i, row := range rows {
		items[i] = row.toLineItem()
	}
	return items, nil
}

// Update writes the header with optimistic locking and bumps doc.Version.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	data := postgres.PickColumns(postgres.StructToMap(doc), r.columns,
		"id", "company_id", "kind", "created_at", "created_by", "version", "deletion_mark")

	sql, args, err := r.builder.
		Update(documentsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID, "company_id": doc.CompanyID, "version": doc.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var version int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		return apperror.NewDatabase("update document", err)
	}

	doc.SetVersion(version)
	return nil
}

// SaveItems replaces the items of a document.
func (r *DocumentRepo) SaveItems(ctx context.Context, docID id.ID, items []documents.LineItem) error {
	sql, args, err := r.builder.Delete(itemsTable).Where(squirrel.Eq{"document_id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete items: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("delete document items", err)
	}
	return r.insertItems(ctx, docID, items)
}

// Delete soft-deletes a document.
func (r *DocumentRepo) Delete(ctx context.Context, companyID, docID id.ID) error {
	sql, args, err := r.builder.
		Update(documentsTable).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID, "company_id": companyID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("delete document", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}
	return nil
}

// List returns one page of document headers; items are not loaded.
func (r *DocumentRepo) List(ctx context.Context, companyID id.ID, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	result := domain.ListResult[*documents.Document]{Limit: filter.Limit, Offset: filter.Offset}

	where := listConditions(companyID, filter)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(documentsTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, apperror.NewDatabase("count documents", err)
	}

	q := r.builder.
		Select(r.columns...).
		From(documentsTable).
		Where(where).
		OrderBy(orderBy(filter.OrderBy), "id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}

	result.Items = make([]*documents.Document, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, apperror.NewDatabase("list documents", err)
	}
	return result, nil
}

// FindDerived lists documents converted from sourceID.
func (r *DocumentRepo) FindDerived(ctx context.Context, companyID, sourceID id.ID, kind *documents.Kind) ([]*documents.Document, error) {
	q := r.selectDocument(companyID).
		Where(squirrel.Eq{"derived_from_id": sourceID}).
		OrderBy("created_at")
	if kind != nil {
		q = q.Where(squirrel.Eq{"kind": *kind})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	derived := make([]*documents.Document, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &derived, sql, args...); err != nil {
		return nil, apperror.NewDatabase("find derived documents", err)
	}
	return derived, nil
}

// FindOverdue lists sent documents past their due date across all companies.
func (r *DocumentRepo) FindOverdue(ctx context.Context, kinds []documents.Kind, asOf time.Time, limit int) ([]documents.OverdueRef, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	sql, args, err := overdueQuery(r.builder, kinds, asOf, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	refs := make([]documents.OverdueRef, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &refs, sql, args...); err != nil {
		return nil, apperror.NewDatabase("find overdue documents", err)
	}
	return refs, nil
}

func overdueQuery(b squirrel.StatementBuilderType, kinds []documents.Kind, asOf time.Time, limit int) squirrel.SelectBuilder {
	return b.
		Select("company_id", "id").
		From(documentsTable).
		Where(squirrel.Eq{
			"status":        documents.StatusSent,
			"kind":          kinds,
			"deletion_mark": false,
		}).
		Where(squirrel.Lt{"due_date": asOf}).
		OrderBy("due_date", "id").
		Limit(uint64(limit))
}

func listConditions(companyID id.ID, f documents.ListFilter) squirrel.And {
	where := squirrel.And{squirrel.Eq{"company_id": companyID}}

	if !f.IncludeDeleted {
		where = append(where, squirrel.Eq{"deletion_mark": false})
	}
	if len(f.IDs) > 0 {
		where = append(where, squirrel.Eq{"id": f.IDs})
	}
	if f.Kind != nil {
		where = append(where, squirrel.Eq{"kind": *f.Kind})
	}
	if f.Status != nil {
		where = append(where, squirrel.Eq{"status": *f.Status})
	}
	if f.CounterpartyID != nil {
		where = append(where, squirrel.Eq{"counterparty_id": *f.CounterpartyID})
	}
	if f.DateFrom != nil {
		where = append(where, squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		where = append(where, squirrel.LtOrEq{"date": *f.DateTo})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"counterparty_name": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}
	return where
}

// orderBy turns "-date" into "date DESC". Unknown keys sort by date, newest first.
func orderBy(key string) string {
	desc := strings.HasPrefix(key, "-")
	col, ok := sortColumns[strings.TrimPrefix(key, "-")]
	if !ok {
		return "date DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
