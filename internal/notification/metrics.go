package notification

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics は通知サービスのPrometheusメトリクス。
// nil のまま呼び出しても何もしない。
type Metrics struct {
	dispatched   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	reads        prometheus.Counter
	connections  prometheus.Gauge
	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// NewMetrics はメトリクスを生成して reg に登録する。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_notifications_dispatched_total",
			Help: "Number of notifications persisted and published.",
		}, []string{"audience"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_dispatch_failures_total",
			Help: "Number of rejected or failed dispatch requests.",
		}, []string{"code"}),
		reads: f.NewCounter(prometheus.CounterOpts{
			Name: "notifyhub_notifications_marked_read_total",
			Help: "Number of notifications marked read by principals.",
		}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "notifyhub_connections",
			Help: "Number of live realtime connections.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
	}
}

func (m *Metrics) dispatchSucceeded(kind AudienceKind) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) dispatchFailed(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(apperror.Code(err)).Inc()
}

func (m *Metrics) markedRead(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reads.Add(float64(n))
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) disconnected() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Middleware はHTTPリクエストの件数と所要時間を記録するGinミドルウェアを返す。
// パスはルート定義（例: /api/v1/notifications/:id/read）で集計する。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(path, c.Request.Method, status).Inc()
	}
}
