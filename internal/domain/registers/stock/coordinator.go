package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/core/tx"
	"facturo/pkg/logger"
)

// Coordinator applies the stock effect of documents.
// Transactions are joined from the caller when one is active, so a rejected
// exit rolls back everything the caller did before it.
type Coordinator struct {
	repo      Repository
	txManager tx.Manager // optional - if nil, obtained from context
	now       func() time.Time
}

// NewCoordinator creates a stock coordinator.
func NewCoordinator(repo Repository, txManager tx.Manager) *Coordinator {
	return &Coordinator{
		repo:      repo,
		txManager: txManager,
		now:       time.Now,
	}
}

func (c *Coordinator) getTxManager(ctx context.Context) (tx.Manager, error) {
	if c.txManager != nil {
		return c.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Apply moves the request's quantities in or out of stock.
//
// Quantities are summed per product and products are updated in ID order.
// Exits use a guarded decrement; every product that cannot cover its demand
// is reported in a single INSUFFICIENT_STOCK error and nothing is kept.
func (c *Coordinator) Apply(ctx context.Context, tc tenant.TenantContext, req Request) (Result, error) {
	if req.Effect == EffectNone {
		return Result{}, nil
	}
	if err := tc.RequireWrite(); err != nil {
		return Result{}, err
	}

	demand, order := aggregate(req.Lines)
	if len(order) == 0 {
		return Result{}, nil
	}

	txm, err := c.getTxManager(ctx)
	if err != nil {
		return Result{}, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var result Result
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var (
			levels    = make(map[id.ID]Level, len(order))
			shortages []Shortage
		)

		for _, productID := range order {
			qty := demand[productID]

			if req.Effect == EffectEntry {
				level, err := c.repo.Increment(ctx, tc.CompanyID, productID, qty)
				if err != nil {
					return fmt.Errorf("increment %s: %w", productID, err)
				}
				levels[productID] = level
				continue
			}

			level, ok, err := c.repo.Decrement(ctx, tc.CompanyID, productID, qty)
			if err != nil {
				return fmt.Errorf("decrement %s: %w", productID, err)
			}
			if ok {
				levels[productID] = level
				continue
			}

			shortage, err := c.shortage(ctx, tc.CompanyID, productID, qty)
			if err != nil {
				return err
			}
			shortages = append(shortages, shortage)
		}

		if len(shortages) > 0 {
			return apperror.NewInsufficientStock(shortages).
				WithDetail("document", req.DocumentNumber)
		}

		result = c.buildResult(tc, req, order, demand, levels)
		if err := c.repo.CreateMovements(ctx, result.Movements); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info(ctx, "applied stock effect",
		"document_id", req.DocumentID,
		"effect", string(req.Effect),
		"products", len(order),
		"low_stock", len(result.LowStock),
	)

	return result, nil
}

// Reverse undoes a previously applied effect, e.g. when its document is cancelled.
// Reversing an entry is a guarded exit and fails when the goods are gone.
func (c *Coordinator) Reverse(ctx context.Context, tc tenant.TenantContext, req Request) (Result, error) {
	req.Effect = req.Effect.Reverse()
	req.DocumentNumber = "Annulation " + req.DocumentNumber
	return c.Apply(ctx, tc, req)
}

// Movements lists the movements recorded for a document.
func (c *Coordinator) Movements(ctx context.Context, tc tenant.TenantContext, documentID id.ID) ([]Movement, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	movements, err := c.repo.GetMovementsByDocument(ctx, tc.CompanyID, documentID)
	if err != nil {
		return nil, fmt.Errorf("get movements: %w", err)
	}
	return movements, nil
}

func (c *Coordinator) shortage(ctx context.Context, companyID, productID id.ID, requested decimal.Decimal) (Shortage, error) {
	s := Shortage{ProductID: productID, Requested: requested, Available: decimal.Zero}

	level, err := c.repo.GetLevel(ctx, companyID, productID)
	switch {
	case apperror.IsNotFound(err):
		return s, nil
	case err != nil:
		return s, fmt.Errorf("get level %s: %w", productID, err)
	}

	s.Name = level.Name
	s.Available = level.Quantity
	return s, nil
}

func (c *Coordinator) buildResult(
	tc tenant.TenantContext,
	req Request,
	order []id.ID,
	demand map[id.ID]decimal.Decimal,
	levels map[id.ID]Level,
) Result {
	direction := DirectionIn
	if req.Effect == EffectExit {
		direction = DirectionOut
	}
	now := c.now().UTC()

	var result Result
	for _, productID := range order {
		result.Movements = append(result.Movements, Movement{
			ID:         id.New(),
			CompanyID:  tc.CompanyID,
			ProductID:  productID,
			DocumentID: req.DocumentID,
			Direction:  direction,
			Quantity:   demand[productID],
			Note:       req.DocumentNumber,
			CreatedBy:  tc.UserID,
			CreatedAt:  now,
		})

		level := levels[productID]
		if req.Effect == EffectExit && level.IsLow() {
			result.LowStock = append(result.LowStock, LowStockAlert{
				ProductID:   productID,
				Name:        level.Name,
				Quantity:    level.Quantity,
				MinQuantity: level.MinQuantity,
			})
		}
	}
	return result
}

// aggregate sums positive quantities per product and returns the products in ID order.
func aggregate(lines []Line) (map[id.ID]decimal.Decimal, []id.ID) {
	demand := make(map[id.ID]decimal.Decimal)
	for _, l := range lines {
		if l.ProductID == nil || id.IsNil(*l.ProductID) {
			continue
		}
		demand[*l.ProductID] = demand[*l.ProductID].Add(l.Quantity)
	}

	order := make([]id.ID, 0, len(demand))
	for productID, qty := range demand {
		if !qty.IsPositive() {
			delete(demand, productID)
			continue
		}
		order = append(order, productID)
	}
	id.Sort(order)
	return demand, order
}
