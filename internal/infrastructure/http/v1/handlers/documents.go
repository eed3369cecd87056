package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/domain"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/infrastructure/http/v1/dto"
	"facturo/internal/infrastructure/storage/postgres"
)

// DocumentService is the part of documents.Service the handler uses.
type DocumentService interface {
	Create(ctx context.Context, tc tenant.TenantContext, doc *documents.Document) (documents.Outcome, error)
	Convert(ctx context.Context, tc tenant.TenantContext, sourceID id.ID, target documents.Kind) (documents.Outcome, error)
	ChangeStatus(ctx context.Context, tc tenant.TenantContext, docID id.ID, next documents.Status) (*documents.Document, error)
	Update(ctx context.Context, tc tenant.TenantContext, doc *documents.Document) (*documents.Document, error)
	Delete(ctx context.Context, tc tenant.TenantContext, docID id.ID) error
	Get(ctx context.Context, tc tenant.TenantContext, docID id.ID) (*documents.Document, error)
	List(ctx context.Context, tc tenant.TenantContext, filter documents.ListFilter) (domain.ListResult[*documents.Document], error)
	Derived(ctx context.Context, tc tenant.TenantContext, docID id.ID) ([]*documents.Document, error)
	Movements(ctx context.Context, tc tenant.TenantContext, docID id.ID) ([]stock.Movement, error)
	PrintData(ctx context.Context, tc tenant.TenantContext, docID id.ID) (documents.PrintData, error)
}

// AuditHistory reads the audit log.
type AuditHistory interface {
	History(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

const defaultHistoryLimit = 50

// DocumentHandler handles /documents.
type DocumentHandler struct {
	*BaseHandler
	service DocumentService
	audit   AuditHistory
}

// NewDocumentHandler creates a new document handler. audit may be nil.
func NewDocumentHandler(base *BaseHandler, service DocumentService, audit AuditHistory) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
		audit:       audit,
	}
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}

	var query dto.ListDocumentsQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), tc, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[dto.DocumentResponse]{
		Items:      dto.FromDocuments(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := req.ToDocument(tc)
	if err != nil {
		h.Error(c, err)
		return
	}

	outcome, err := h.service.Create(c.Request.Context(), tc, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromOutcome(outcome))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Update handles PUT /documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := req.ToDocument(docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), tc, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(updated))
}

// Delete handles DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), tc, docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Convert handles POST /documents/:id/convert
func (h *DocumentHandler) Convert(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	sourceID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.ConvertDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target := documents.Kind(req.Target)
	if !target.Valid() {
		h.Error(c, apperror.NewFieldValidation("target", "unknown document kind").WithDetail("value", req.Target))
		return
	}

	outcome, err := h.service.Convert(c.Request.Context(), tc, sourceID, target)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromOutcome(outcome))
}

// ChangeStatus handles POST /documents/:id/status
func (h *DocumentHandler) ChangeStatus(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.ChangeStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	next := documents.Status(req.Status)
	if !next.Valid() {
		h.Error(c, apperror.NewFieldValidation("status", "unknown status").WithDetail("value", req.Status))
		return
	}

	doc, err := h.service.ChangeStatus(c.Request.Context(), tc, docID, next)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Derived handles GET /documents/:id/derived
func (h *DocumentHandler) Derived(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	docs, err := h.service.Derived(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromDocuments(docs)})
}

// Movements handles GET /documents/:id/movements
func (h *DocumentHandler) Movements(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	movements, err := h.service.Movements(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromStockMovements(movements)})
}

// Print handles GET /documents/:id/print
func (h *DocumentHandler) Print(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	data, err := h.service.PrintData(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPrintData(data))
}

// History handles GET /documents/:id/history
func (h *DocumentHandler) History(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if h.audit == nil {
		h.OK(c, gin.H{"items": []postgres.AuditEntry{}})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.service.Get(ctx, tc, docID); err != nil {
		h.Error(c, err)
		return
	}

	limit := h.ParseIntQuery(c, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > domain.MaxListLimit {
		limit = defaultHistoryLimit
	}

	entries, err := h.audit.History(ctx, tc.CompanyID, documents.AuditEntityType, docID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": entries})
}
