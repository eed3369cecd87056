// Package metrics exposes business and HTTP metrics for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facturo/internal/domain/documents"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/pkg/logger"
)

// Recorder counts document events and HTTP requests.
type Recorder struct {
	registry *prometheus.Registry

	documentsCreated   *prometheus.CounterVec
	documentsConverted *prometheus.CounterVec
	statusChanges      *prometheus.CounterVec
	stockRejections    *prometheus.CounterVec
	lowStockAlerts     prometheus.Counter

	requestDuration *prometheus.HistogramVec
}

var _ documents.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		documentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facturo_documents_created_total",
			Help: "Documents created directly, by kind.",
		}, []string{"kind"}),
		documentsConverted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facturo_documents_converted_total",
			Help: "Documents created by conversion, by source and target kind.",
		}, []string{"from", "to"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facturo_document_status_changes_total",
			Help: "Status transitions, by kind and new status.",
		}, []string{"kind", "status"}),
		stockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facturo_stock_rejections_total",
			Help: "Operations rejected for insufficient stock, by document kind.",
		}, []string{"kind"}),
		lowStockAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facturo_low_stock_alerts_total",
			Help: "Products that fell to or below their minimum quantity.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facturo_http_request_duration_seconds",
			Help:    "HTTP request latency, by route and status.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route", "status"}),
	}

	r.registry.MustRegister(
		r.documentsCreated,
		r.documentsConverted,
		r.statusChanges,
		r.stockRejections,
		r.lowStockAlerts,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// DocumentCreated implements documents.Observer.
func (r *Recorder) DocumentCreated(kind string) {
	r.documentsCreated.WithLabelValues(kind).Inc()
}

// DocumentConverted implements documents.Observer.
func (r *Recorder) DocumentConverted(from, to string) {
	r.documentsConverted.WithLabelValues(from, to).Inc()
}

// StatusChanged implements documents.Observer.
func (r *Recorder) StatusChanged(kind, status string) {
	r.statusChanges.WithLabelValues(kind, status).Inc()
}

// StockRejected implements documents.Observer.
func (r *Recorder) StockRejected(kind string) {
	r.stockRejections.WithLabelValues(kind).Inc()
}

// LowStock implements documents.Observer.
func (r *Recorder) LowStock(alerts int) {
	r.lowStockAlerts.Add(float64(alerts))
}

// RegisterPool exports connection pool usage.
func (r *Recorder) RegisterPool(pool *postgres.Pool) {
	gauge := func(name, help string, value func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(pool.Stats())
		})
	}

	r.registry.MustRegister(
		gauge("facturo_db_conns_total", "Open database connections.",
			func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("facturo_db_conns_acquired", "Database connections in use.",
			func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("facturo_db_conns_idle", "Idle database connections.",
			func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("facturo_db_conns_max", "Maximum database connections.",
			func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}

// Middleware observes request latency by matched route.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

type logFunc func(v ...any)

func (l logFunc) Println(v ...any) {
	l(v...)
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	sugar := logger.Default().WithComponent("metrics")
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorLog:      logFunc(sugar.Warn),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
