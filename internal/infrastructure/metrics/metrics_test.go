package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsDocumentEvents(t *testing.T) {
	r := NewRecorder()

	r.DocumentCreated("quote")
	r.DocumentCreated("quote")
	r.DocumentConverted("quote", "sale_order")
	r.StatusChanged("sale_invoice", "paid")
	r.StockRejected("sale_invoice")
	r.LowStock(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.documentsCreated.WithLabelValues("quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.documentsConverted.WithLabelValues("quote", "sale_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statusChanges.WithLabelValues("sale_invoice", "paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stockRejections.WithLabelValues("sale_invoice")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.lowStockAlerts))
}

func TestRecorder_HandlerServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRecorder()

	router := gin.New()
	router.Use(r.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(r.Handler()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	r.DocumentCreated("sale_invoice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `facturo_documents_created_total{kind="sale_invoice"} 1`)
	assert.True(t, strings.Contains(body, `facturo_http_request_duration_seconds_count{method="GET",route="/ping",status="204"} 1`))
}
