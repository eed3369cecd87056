// Package register_repo provides the PostgreSQL stock repository.
// The TxManager is taken from context per request.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/types"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/infrastructure/storage/postgres"
)

const (
	productsTable       = "products"
	stockMovementsTable = "stock_movements"
)

var (
	levelColumns    = postgres.ExtractDBColumns[stock.Level]()
	movementColumns = postgres.ExtractDBColumns[stock.Movement]()
)

// StockRepo implements stock.Repository on the products table.
type StockRepo struct {
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock repository.
func NewStockRepo() *StockRepo {
	return &StockRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// decrementQuery builds the guarded exit: the row only changes when it holds
// enough stock, so concurrent exits can never drive a quantity negative.
func (r *StockRepo) decrementQuery(companyID, productID id.ID, qty types.Quantity) squirrel.UpdateBuilder {
	return r.builder.
		Update(productsTable).
		Set("quantity", squirrel.Expr("quantity - ?", qty)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID, "company_id": companyID}).
		Where(squirrel.GtOrEq{"quantity": qty}).
		Suffix("RETURNING id, name, quantity, min_quantity")
}

func (r *StockRepo) incrementQuery(companyID, productID id.ID, qty types.Quantity) squirrel.UpdateBuilder {
	return r.builder.
		Update(productsTable).
		Set("quantity", squirrel.Expr("quantity + ?", qty)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID, "company_id": companyID}).
		Suffix("RETURNING id, name, quantity, min_quantity")
}

// Decrement subtracts qty when the product holds at least qty.
func (r *StockRepo) Decrement(ctx context.Context, companyID, productID id.ID, qty types.Quantity) (stock.Level, bool, error) {
	sql, args, err := r.decrementQuery(companyID, productID, qty).ToSql()
	if err != nil {
		return stock.Level{}, false, fmt.Errorf("build decrement: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.getTxManager(ctx).GetQuerier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Level{}, false, nil
		}
		return stock.Level{}, false, apperror.NewDatabase("decrement stock", err)
	}
	return level, true, nil
}

// Increment adds qty to the product.
func (r *StockRepo) Increment(ctx context.Context, companyID, productID id.ID, qty types.Quantity) (stock.Level, error) {
	sql, args, err := r.incrementQuery(companyID, productID, qty).ToSql()
	if err != nil {
		return stock.Level{}, fmt.Errorf("build increment: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.getTxManager(ctx).GetQuerier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Level{}, apperror.NewNotFound("product", productID.String())
		}
		return stock.Level{}, apperror.NewDatabase("increment stock", err)
	}
	return level, nil
}

// GetLevel returns the current level of a product.
func (r *StockRepo) GetLevel(ctx context.Context, companyID, productID id.ID) (stock.Level, error) {
	sql, args, err := r.builder.
		Select(levelColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return stock.Level{}, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.getTxManager(ctx).GetQuerier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Level{}, apperror.NewNotFound("product", productID.String())
		}
		return stock.Level{}, apperror.NewDatabase("get stock level", err)
	}
	return level, nil
}

// CreateMovements appends movements with COPY inside the caller's transaction.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	txm := r.getTxManager(ctx)
	if txm.GetTx(ctx) != nil {
		rows := postgres.Rows(movements, movementValues)
		if _, err := postgres.NewBatchInserter(txm).CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return apperror.NewDatabase("copy stock movements", err)
		}
		return nil
	}

	// outside a transaction: plain multi-row insert
	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(m.ID, m.CompanyID, m.ProductID, m.DocumentID, m.Direction, m.Quantity, m.Note, m.CreatedBy, m.CreatedAt)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("insert stock movements", err)
	}
	return nil
}

// movementValues lists m in movementColumns order.
func movementValues(m stock.Movement) []any {
	return []any{
		m.ID, m.CompanyID, m.ProductID, m.DocumentID, string(m.Direction),
		postgres.Numeric(m.Quantity), m.Note, m.CreatedBy, m.CreatedAt,
	}
}

// GetMovementsByDocument lists movements of a document, oldest first.
func (r *StockRepo) GetMovementsByDocument(ctx context.Context, companyID, documentID id.ID) ([]stock.Movement, error) {
	sql, args, err := r.builder.
		Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"company_id": companyID, "document_id": documentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]stock.Movement, 0)
	if err := pgxscan.Select(ctx, r.getTxManager(ctx).GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select stock movements", err)
	}
	return movements, nil
}
