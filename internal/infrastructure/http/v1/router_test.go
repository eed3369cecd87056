package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/core/tx"
	"facturo/internal/domain"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/infrastructure/http/v1/dto"
	"facturo/internal/infrastructure/http/v1/middleware"
	"facturo/internal/infrastructure/metrics"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	company    = id.New()
	accountant = tenant.New(company, "acc-1", tenant.RoleAccountant)
	viewer     = tenant.New(company, "view-1", tenant.RoleViewer)
)

type tokens map[string]tenant.TenantContext

func (t tokens) ValidateToken(token string) (tenant.TenantContext, error) {
	if tc, ok := t[token]; ok {
		return tc, nil
	}
	return tenant.TenantContext{}, errors.New("unknown token")
}

// fakeService keeps documents in memory and records what it was asked.
type fakeService struct {
	docs       map[id.ID]*documents.Document
	lastFilter documents.ListFilter
	lastTarget documents.Kind
	lastStatus documents.Status
}

func newFakeService() *fakeService {
	return &fakeService{docs: map[id.ID]*documents.Document{}}
}

func (s *fakeService) find(tc tenant.TenantContext, docID id.ID) (*documents.Document, error) {
	doc, ok := s.docs[docID]
	if !ok || doc.CompanyID != tc.CompanyID {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return doc, nil
}

func (s *fakeService) Create(_ context.Context, tc tenant.TenantContext, doc *documents.Document) (documents.Outcome, error) {
	if err := tc.RequireWrite(); err != nil {
		return documents.Outcome{}, err
	}
	doc.ID = id.New()
	doc.Version = 1
	doc.Number = doc.Kind.Prefix() + "-2026-00001"
	if doc.Currency == "" {
		doc.Currency = "TND"
	}
	doc.Recalculate()
	s.docs[doc.ID] = doc
	return documents.Outcome{Document: doc}, nil
}

func (s *fakeService) Convert(_ context.Context, tc tenant.TenantContext, sourceID id.ID, target documents.Kind) (documents.Outcome, error) {
	s.lastTarget = target
	src, err := s.find(tc, sourceID)
	if err != nil {
		return documents.Outcome{}, err
	}
	if !src.Kind.CanConvertTo(target) {
		return documents.Outcome{}, apperror.NewInvalidConversion(string(src.Kind), string(target))
	}
	dst := documents.NewDocument(tc.CompanyID, tc.UserID, target)
	dst.ID = id.New()
	dst.DerivedFromID = id.Ptr(src.ID)
	s.docs[dst.ID] = dst
	return documents.Outcome{Document: dst}, nil
}

func (s *fakeService) ChangeStatus(_ context.Context, tc tenant.TenantContext, docID id.ID, next documents.Status) (*documents.Document, error) {
	s.lastStatus = next
	doc, err := s.find(tc, docID)
	if err != nil {
		return nil, err
	}
	doc.Status = next
	return doc, nil
}

func (s *fakeService) Update(_ context.Context, tc tenant.TenantContext, doc *documents.Document) (*documents.Document, error) {
	current, err := s.find(tc, doc.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != doc.Version {
		return nil, apperror.NewConcurrentModification("document", doc.ID.String())
	}
	current.Items = doc.Items
	current.Version++
	current.Recalculate()
	return current, nil
}

func (s *fakeService) Delete(_ context.Context, tc tenant.TenantContext, docID id.ID) error {
	if _, err := s.find(tc, docID); err != nil {
		return err
	}
	delete(s.docs, docID)
	return nil
}

func (s *fakeService) Get(_ context.Context, tc tenant.TenantContext, docID id.ID) (*documents.Document, error) {
	return s.find(tc, docID)
}

func (s *fakeService) List(_ context.Context, _ tenant.TenantContext, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	s.lastFilter = filter
	items := make([]*documents.Document, 0, len(s.docs))
	for _, d := range s.docs {
		items = append(items, d)
	}
	return domain.ListResult[*documents.Document]{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit}, nil
}

func (s *fakeService) Derived(_ context.Context, tc tenant.TenantContext, docID id.ID) ([]*documents.Document, error) {
	if _, err := s.find(tc, docID); err != nil {
		return nil, err
	}
	var out []*documents.Document
	for _, d := range s.docs {
		if id.EqualPtr(d.DerivedFromID, &docID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeService) Movements(_ context.Context, tc tenant.TenantContext, docID id.ID) ([]stock.Movement, error) {
	if _, err := s.find(tc, docID); err != nil {
		return nil, err
	}
	return []stock.Movement{{
		ID:         id.New(),
		CompanyID:  tc.CompanyID,
		ProductID:  id.New(),
		DocumentID: docID,
		Direction:  stock.DirectionOut,
		Quantity:   decimal.NewFromInt(3),
	}}, nil
}

func (s *fakeService) PrintData(_ context.Context, tc tenant.TenantContext, docID id.ID) (documents.PrintData, error) {
	doc, err := s.find(tc, docID)
	if err != nil {
		return documents.PrintData{}, err
	}
	return documents.BuildPrintData(doc), nil
}

type fakeAudit struct {
	entries []postgres.AuditEntry
}

func (a *fakeAudit) History(_ context.Context, companyID id.ID, entityType string, entityID id.ID, _ int) ([]postgres.AuditEntry, error) {
	var out []postgres.AuditEntry
	for _, e := range a.entries {
		if e.CompanyID == companyID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type testAPI struct {
	router  *gin.Engine
	service *fakeService
	audit   *fakeAudit
	metrics *metrics.Recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		service: newFakeService(),
		audit:   &fakeAudit{},
		metrics: metrics.NewRecorder(),
	}
	api.router = NewRouter(RouterConfig{
		TxManager: tx.ManagerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}),
		Logger:         logger.Default(),
		TokenValidator: tokens{"acc": accountant, "view": viewer},
		Documents:      api.service,
		Audit:          api.audit,
		Metrics:        api.metrics,
	})
	return api
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func invoiceBody() map[string]any {
	return map[string]any{
		"kind":             "sale_invoice",
		"counterpartyName": "Client SARL",
		"items": []map[string]any{
			{"description": "Pompe", "quantity": "1", "unitPrice": "1000", "vatRate": "19", "fodec": map[string]any{"rate": "0.01"}},
		},
	}
}

func TestDocuments_CreateAndGet(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/documents", "acc", invoiceBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[dto.OutcomeResponse](t, w)
	doc := created.Document
	assert.Equal(t, "sale_invoice", doc.Kind)
	assert.Equal(t, "FAC-2026-00001", doc.Number)
	assert.Equal(t, "draft", doc.Status)
	assert.True(t, decimal.RequireFromString("1201.9").Equal(doc.Totals.Total))
	require.Len(t, doc.Items, 1)
	assert.True(t, decimal.RequireFromString("10").Equal(doc.Items[0].FodecAmount))
	assert.Equal(t, []string{"sent", "cancelled"}, doc.NextStatuses)
	assert.Equal(t, []string{"sale_credit_note"}, doc.ConversionTargets)

	w = api.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID, "view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, doc.ID, decode[dto.DocumentResponse](t, w).ID)
}

func TestDocuments_Rejections(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/documents", "", nil, http.StatusUnauthorized, apperror.CodeUnauthorized},
		{"viewer cannot create", http.MethodPost, "/api/v1/documents", "view", invoiceBody(), http.StatusForbidden, apperror.CodeForbidden},
		{"unknown kind", http.MethodPost, "/api/v1/documents", "acc", map[string]any{"kind": "receipt"}, http.StatusBadRequest, apperror.CodeValidation},
		{"missing kind", http.MethodPost, "/api/v1/documents", "acc", map[string]any{}, http.StatusBadRequest, apperror.CodeValidation},
		{"bad product id", http.MethodPost, "/api/v1/documents", "acc", map[string]any{
			"kind":  "quote",
			"items": []map[string]any{{"productId": "nope", "quantity": "1"}},
		}, http.StatusBadRequest, apperror.CodeValidation},
		{"bad id", http.MethodGet, "/api/v1/documents/xyz", "acc", nil, http.StatusBadRequest, apperror.CodeValidation},
		{"missing document", http.MethodGet, "/api/v1/documents/" + id.New().String(), "acc", nil, http.StatusNotFound, apperror.CodeNotFound},
		{"unknown status filter", http.MethodGet, "/api/v1/documents?status=lost", "acc", nil, http.StatusBadRequest, apperror.CodeValidation},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[middleware.ErrorResponse](t, w).Code)
		})
	}
}

func TestDocuments_ConvertAndStatus(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/documents", "acc", map[string]any{"kind": "quote"})
	require.Equal(t, http.StatusCreated, w.Code)
	quoteID := decode[dto.OutcomeResponse](t, w).Document.ID

	w = api.do(t, http.MethodPost, "/api/v1/documents/"+quoteID+"/convert", "acc", map[string]any{"target": "sale_credit_note"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInvalidConversion, decode[middleware.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodPost, "/api/v1/documents/"+quoteID+"/convert", "acc", map[string]any{"target": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/documents/"+quoteID+"/convert", "acc", map[string]any{"target": "sale_order"})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[dto.OutcomeResponse](t, w).Document
	assert.Equal(t, "sale_order", order.Kind)
	require.NotNil(t, order.DerivedFromID)
	assert.Equal(t, quoteID, *order.DerivedFromID)

	w = api.do(t, http.MethodGet, "/api/v1/documents/"+quoteID+"/derived", "view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	derived := decode[struct {
		Items []dto.DocumentResponse `json:"items"`
	}](t, w)
	require.Len(t, derived.Items, 1)
	assert.Equal(t, order.ID, derived.Items[0].ID)

	w = api.do(t, http.MethodPost, "/api/v1/documents/"+quoteID+"/status", "acc", map[string]any{"status": "sent"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, documents.StatusSent, api.service.lastStatus)
	assert.Equal(t, "sent", decode[dto.DocumentResponse](t, w).Status)

	w = api.do(t, http.MethodPost, "/api/v1/documents/"+quoteID+"/status", "view", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDocuments_UpdateAndDelete(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/documents", "acc", map[string]any{"kind": "quote"})
	require.Equal(t, http.StatusCreated, w.Code)
	docID := decode[dto.OutcomeResponse](t, w).Document.ID

	update := map[string]any{
		"version": 1,
		"items":   []map[string]any{{"quantity": "2", "unitPrice": "100", "vatRate": "19"}},
	}
	w = api.do(t, http.MethodPut, "/api/v1/documents/"+docID, "acc", update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.DocumentResponse](t, w)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, decimal.RequireFromString("238").Equal(updated.Totals.Total))

	w = api.do(t, http.MethodPut, "/api/v1/documents/"+docID, "acc", update)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/documents/"+docID, "acc", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "version is required")

	w = api.do(t, http.MethodDelete, "/api/v1/documents/"+docID, "acc", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/documents/"+docID, "acc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocuments_ListFilters(t *testing.T) {
	api := newTestAPI(t)
	counterparty := id.New()

	w := api.do(t, http.MethodGet,
		"/api/v1/documents?kind=sale_invoice&status=sent&counterpartyId="+counterparty.String()+
			"&dateFrom=2026-01-01&dateTo=2026-01-31&search=acme&limit=10&offset=20&orderBy=number",
		"view", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f := api.service.lastFilter
	require.NotNil(t, f.Kind)
	assert.Equal(t, documents.KindSaleInvoice, *f.Kind)
	require.NotNil(t, f.Status)
	assert.Equal(t, documents.StatusSent, *f.Status)
	assert.Equal(t, &counterparty, f.CounterpartyID)
	assert.Equal(t, "acme", f.Search)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)
	assert.Equal(t, "number", f.OrderBy)
	require.NotNil(t, f.DateFrom)
	require.NotNil(t, f.DateTo)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.DateFrom.UTC())
	assert.True(t, f.DateTo.After(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, f.DateTo.Before(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDocuments_PrintMovementsHistory(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/documents", "acc", invoiceBody())
	require.Equal(t, http.StatusCreated, w.Code)
	docID := decode[dto.OutcomeResponse](t, w).Document.ID

	w = api.do(t, http.MethodGet, "/api/v1/documents/"+docID+"/print", "view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	printed := decode[dto.PrintResponse](t, w)
	assert.Equal(t, "1 201,900 DT", printed.Formatted.Total)
	assert.Equal(t, "mille deux cent un dinars et neuf cents millimes", printed.AmountInWords)

	w = api.do(t, http.MethodGet, "/api/v1/documents/"+docID+"/movements", "view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	movements := decode[struct {
		Items []dto.StockMovementResponse `json:"items"`
	}](t, w)
	require.Len(t, movements.Items, 1)
	assert.Equal(t, "out", movements.Items[0].Direction)

	parsed := id.MustParse(docID)
	api.audit.entries = []postgres.AuditEntry{
		{ID: id.New(), CompanyID: company, EntityType: documents.AuditEntityType, EntityID: parsed, Action: documents.ActionCreate, Changes: json.RawMessage(`{}`)},
		{ID: id.New(), CompanyID: id.New(), EntityType: documents.AuditEntityType, EntityID: parsed, Action: documents.ActionDelete, Changes: json.RawMessage(`{}`)},
	}
	w = api.do(t, http.MethodGet, "/api/v1/documents/"+docID+"/history", "view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Items []postgres.AuditEntry `json:"items"`
	}](t, w)
	require.Len(t, history.Items, 1)
	assert.Equal(t, documents.ActionCreate, history.Items[0].Action)
}

func TestTotalsPreview(t *testing.T) {
	api := newTestAPI(t)

	body := map[string]any{
		"stampIncluded": true,
		"discount":      map[string]any{"type": "percent", "value": "10"},
		"items": []map[string]any{
			{"quantity": "2", "unitPrice": "50", "vatRate": "19"},
			{"quantity": "1", "unitPrice": "100", "vatRate": "7"},
		},
	}
	w := api.do(t, http.MethodPost, "/api/v1/totals/preview", "view", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	preview := decode[dto.TotalsPreviewResponse](t, w)
	assert.Equal(t, "TND", preview.Currency.Code)
	assert.True(t, decimal.RequireFromString("200").Equal(preview.Totals.Subtotal))
	assert.True(t, decimal.RequireFromString("20").Equal(preview.Totals.DiscountAmount))
	assert.True(t, decimal.RequireFromString("180").Equal(preview.Totals.BaseTVA))
	// 90·19% + 90·7%
	assert.True(t, decimal.RequireFromString("23.4").Equal(preview.Totals.TaxAmount))
	assert.True(t, decimal.RequireFromString("1").Equal(preview.Totals.Stamp))
	assert.True(t, decimal.RequireFromString("204.4").Equal(preview.Totals.Total))
	assert.Len(t, preview.TaxSummary, 2)
	assert.Len(t, preview.Items, 2)

	w = api.do(t, http.MethodPost, "/api/v1/totals/preview", "view", map[string]any{
		"items": []map[string]any{{"quantity": "1", "unitPrice": "-5", "vatRate": "19"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.metrics.DocumentCreated("quote")

	w := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `facturo_documents_created_total{kind="quote"} 1`)
}
