package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/numerator"
	"facturo/internal/core/tenant"
	"facturo/internal/core/tx"
	"facturo/internal/domain"
	"facturo/internal/domain/currency"
	"facturo/internal/domain/registers/stock"
	"facturo/pkg/logger"
)

// Outcome is the result of an operation that may move stock.
type Outcome struct {
	Document *Document             `json:"document"`
	LowStock []stock.LowStockAlert `json:"lowStock,omitempty"`
}

// Service provides business operations for documents.
// Every mutation runs in one transaction together with its numbering, stock
// effect and audit entry.
type Service struct {
	repo      Repository
	stock     StockCoordinator
	numerator numerator.Generator
	txManager tx.Manager // optional - if nil, obtained from context

	auditor         Auditor
	observer        Observer
	defaultCurrency string
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAuditor records every change through a.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithObserver reports business events to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithTxManager fixes the transaction manager instead of reading it from context.
func WithTxManager(txm tx.Manager) Option {
	return func(s *Service) { s.txManager = txm }
}

// WithDefaultCurrency sets the currency of documents created without one.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) { s.defaultCurrency = strings.ToUpper(code) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a document service.
func NewService(repo Repository, stockCoordinator StockCoordinator, gen numerator.Generator, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		stock:           stockCoordinator,
		numerator:       gen,
		auditor:         nopAuditor{},
		observer:        nopObserver{},
		defaultCurrency: currency.DefaultCode,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return txm.RunInTransaction(ctx, fn)
}

// Create stores a new draft document. Totals are always recomputed; invoices
// apply their stock effect immediately. Credit notes can only come from Convert.
func (s *Service) Create(ctx context.Context, tc tenant.TenantContext, doc *Document) (Outcome, error) {
	if err := tc.RequireWrite(); err != nil {
		return Outcome{}, err
	}
	if doc.Kind.IsCreditNote() {
		return Outcome{}, apperror.NewCreditNoteSource("credit notes are created by converting an invoice")
	}
	if doc.SourceDocumentID != nil {
		return Outcome{}, apperror.NewCreditNoteSource("source document is set by conversion only")
	}

	now := s.now().UTC()
	doc.Init(tc.UserID, now)
	doc.CompanyID = tc.CompanyID
	doc.Status = StatusDraft
	doc.DerivedFromID = nil
	doc.Locked, doc.LockedAt = false, nil
	doc.StockApplied = false
	if doc.Date.IsZero() {
		doc.Date = now
	}
	if doc.Currency == "" {
		doc.Currency = s.defaultCurrency
	}
	doc.Currency = strings.ToUpper(doc.Currency)
	for i := range doc.Items {
		doc.Items[i].ID = id.Nil()
	}
	doc.Recalculate()

	if err := doc.Validate(ctx); err != nil {
		return Outcome{}, err
	}

	var result stock.Result
	err := s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.assignNumber(ctx, tc, doc); err != nil {
			return err
		}

		doc.StockApplied = doc.Kind.StockEffect() != stock.EffectNone
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		var err error
		if result, err = s.applyStock(ctx, tc, doc); err != nil {
			return err
		}

		return s.auditor.LogChange(ctx, AuditEntityType, doc.ID, ActionCreate, snapshot(doc))
	})
	if err != nil {
		doc.StockApplied = false
		return Outcome{}, err
	}

	s.observer.DocumentCreated(string(doc.Kind))
	s.reportLowStock(result)
	logger.Info(ctx, "document created", "id", doc.ID, "kind", string(doc.Kind), "number", doc.Number)

	return Outcome{Document: doc, LowStock: result.LowStock}, nil
}

// Convert creates a new document of kind target from the document sourceID.
// The source is locked and never modified otherwise; a target with a stock
// effect moves stock in the same transaction.
func (s *Service) Convert(ctx context.Context, tc tenant.TenantContext, sourceID id.ID, target Kind) (Outcome, error) {
	if err := tc.RequireWrite(); err != nil {
		return Outcome{}, err
	}
	if !target.Valid() {
		return Outcome{}, apperror.NewFieldValidation("targetKind", "unknown document kind").
			WithDetail("value", string(target))
	}

	var (
		dst    *Document
		src    *Document
		result stock.Result
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		src, err = s.repo.GetForUpdate(ctx, tc.CompanyID, sourceID)
		if err != nil {
			return err
		}

		if !src.Kind.CanConvertTo(target) {
			return apperror.NewInvalidConversion(string(src.Kind), string(target))
		}
		if src.Status == StatusCancelled {
			return apperror.NewInvalidConversion(string(src.Kind), string(target)).
				WithDetail("reason", "source document is cancelled")
		}

		existing, err := s.repo.FindDerived(ctx, tc.CompanyID, src.ID, &target)
		if err != nil {
			return fmt.Errorf("find derived: %w", err)
		}
		if len(existing) > 0 {
			return apperror.NewDuplicateConversion(src.ID.String(), string(target)).
				WithDetail("existing_id", existing[0].ID.String())
		}

		now := s.now().UTC()
		dst = deriveFrom(src, target, tc.CompanyID, tc.UserID, now)
		if err := dst.Validate(ctx); err != nil {
			return err
		}
		if err := s.assignNumber(ctx, tc, dst); err != nil {
			return err
		}

		dst.StockApplied = target.StockEffect() != stock.EffectNone
		if err := s.repo.Create(ctx, dst); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		src.Lock(now)
		src.Touch(tc.UserID, now)
		if err := s.repo.Update(ctx, src); err != nil {
			return fmt.Errorf("lock source: %w", err)
		}

		if result, err = s.applyStock(ctx, tc, dst); err != nil {
			return err
		}

		return s.auditor.LogChange(ctx, AuditEntityType, dst.ID, ActionConvert, map[string]any{
			"from":       src.ID.String(),
			"fromNumber": src.Number,
			"fromKind":   string(src.Kind),
			"document":   snapshot(dst),
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	s.observer.DocumentConverted(string(src.Kind), string(target))
	s.reportLowStock(result)
	logger.Info(ctx, "document converted",
		"source_id", src.ID,
		"id", dst.ID,
		"kind", string(target),
		"number", dst.Number,
	)

	return Outcome{Document: dst, LowStock: result.LowStock}, nil
}

// ChangeStatus moves a document along the status chart. Cancelling a document
// whose stock effect was applied reverses that effect.
func (s *Service) ChangeStatus(ctx context.Context, tc tenant.TenantContext, docID id.ID, next Status) (*Document, error) {
	if err := tc.RequireWrite(); err != nil {
		return nil, err
	}

	var (
		doc      *Document
		reversal stock.Result
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, tc.CompanyID, docID)
		if err != nil {
			return err
		}

		if !next.Valid() || !doc.Kind.AllowsStatus(next) || !doc.Status.CanTransitionTo(next) {
			return apperror.NewInvalidStatusTransition(string(doc.Status), string(next)).
				WithDetail("kind", string(doc.Kind))
		}

		if next == StatusCancelled && doc.StockApplied {
			if reversal, err = s.stock.Reverse(ctx, tc, doc.StockRequest()); err != nil {
				s.noteStockRejection(doc.Kind, err)
				return err
			}
			doc.StockApplied = false
		}

		previous := doc.Status
		doc.Status = next
		doc.Touch(tc.UserID, s.now().UTC())
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		return s.auditor.LogChange(ctx, AuditEntityType, doc.ID, ActionStatus, map[string]any{
			"status": map[string]any{"old": string(previous), "new": string(next)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.observer.StatusChanged(string(doc.Kind), string(next))
	s.reportLowStock(reversal)
	logger.Info(ctx, "document status changed", "id", doc.ID, "status", string(next))

	return doc, nil
}

// Update replaces the editable content of a draft document: date, due date,
// counterparty, notes, currency, items, discount and stamp flag.
// doc.Version must match the stored version.
func (s *Service) Update(ctx context.Context, tc tenant.TenantContext, doc *Document) (*Document, error) {
	if err := tc.RequireWrite(); err != nil {
		return nil, err
	}

	var current *Document
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.repo.GetForUpdate(ctx, tc.CompanyID, doc.ID)
		if err != nil {
			return err
		}

		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		if err := current.CanModify(); err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only draft documents can be edited").
				WithDetail("status", string(current.Status))
		}
		if current.StockApplied && !itemsEqual(current.Items, doc.Items) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "items cannot change once stock was moved")
		}

		before := snapshot(current)

		if !doc.Date.IsZero() {
			current.Date = doc.Date
		}
		current.DueDate = doc.DueDate
		current.CounterpartyID = doc.CounterpartyID
		current.CounterpartyName = doc.CounterpartyName
		current.Notes = doc.Notes
		if doc.Currency != "" {
			current.Currency = strings.ToUpper(doc.Currency)
		}
		current.Discount = doc.Discount
		current.StampIncluded = doc.StampIncluded
		current.Items = make([]LineItem, len(doc.Items))
		for i, l := range doc.Items {
			l.ID = id.Nil()
			current.Items[i] = l
		}
		current.Recalculate()

		if err := current.Validate(ctx); err != nil {
			return err
		}

		current.Touch(tc.UserID, s.now().UTC())
		if err := s.repo.Update(ctx, current); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, current.ID, current.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}

		return s.auditor.LogChange(ctx, AuditEntityType, current.ID, ActionUpdate, changedFields(before, snapshot(current)))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document updated", "id", current.ID, "version", current.Version)
	return current, nil
}

// Delete soft-deletes a draft that was never converted and never moved stock.
func (s *Service) Delete(ctx context.Context, tc tenant.TenantContext, docID id.ID) error {
	if err := tc.RequireWrite(); err != nil {
		return err
	}

	err := s.runInTx(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, tc.CompanyID, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if doc.Status != StatusDraft || doc.StockApplied {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only drafts without stock movements can be deleted")
		}

		if err := s.repo.Delete(ctx, tc.CompanyID, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return s.auditor.LogChange(ctx, AuditEntityType, docID, ActionDelete, snapshot(doc))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document deleted", "id", docID)
	return nil
}

// Get retrieves a document with its items.
func (s *Service) Get(ctx context.Context, tc tenant.TenantContext, docID id.ID) (*Document, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tc.CompanyID, docID)
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, tc tenant.TenantContext, filter ListFilter) (domain.ListResult[*Document], error) {
	if err := tc.Validate(); err != nil {
		return domain.ListResult[*Document]{}, err
	}
	filter.Normalize()
	return s.repo.List(ctx, tc.CompanyID, filter)
}

// Derived lists the documents converted from docID.
func (s *Service) Derived(ctx context.Context, tc tenant.TenantContext, docID id.ID) ([]*Document, error) {
	if _, err := s.Get(ctx, tc, docID); err != nil {
		return nil, err
	}
	return s.repo.FindDerived(ctx, tc.CompanyID, docID, nil)
}

// Movements lists the stock movements recorded for docID.
func (s *Service) Movements(ctx context.Context, tc tenant.TenantContext, docID id.ID) ([]stock.Movement, error) {
	if _, err := s.Get(ctx, tc, docID); err != nil {
		return nil, err
	}
	return s.stock.Movements(ctx, tc, docID)
}

func (s *Service) assignNumber(ctx context.Context, tc tenant.TenantContext, doc *Document) error {
	cfg := numerator.DefaultConfig(tc.CompanyID.String(), doc.Kind.Prefix())
	opts := &numerator.Options{Strategy: doc.Kind.NumberingStrategy()}

	number, err := s.numerator.GetNextNumber(ctx, cfg, opts, doc.Date)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	return nil
}

func (s *Service) applyStock(ctx context.Context, tc tenant.TenantContext, doc *Document) (stock.Result, error) {
	if !doc.StockApplied {
		return stock.Result{}, nil
	}
	result, err := s.stock.Apply(ctx, tc, doc.StockRequest())
	if err != nil {
		s.noteStockRejection(doc.Kind, err)
		return stock.Result{}, err
	}
	return result, nil
}

func (s *Service) noteStockRejection(kind Kind, err error) {
	if apperror.HasCode(err, apperror.CodeInsufficientStock) {
		s.observer.StockRejected(string(kind))
	}
}

func (s *Service) reportLowStock(result stock.Result) {
	if n := len(result.LowStock); n > 0 {
		s.observer.LowStock(n)
	}
}
