// Package metrics provides Prometheus metrics for the explorer server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_sessions_active",
			Help: "Number of open explorer sessions",
		},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_uploads_total",
			Help: "Total number of finished uploads",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_upload_bytes_total",
			Help: "Total bytes stored by successful uploads",
		},
	)

	// Deletion metrics
	deletedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_deleted_items_total",
			Help: "Total files and directories removed",
		},
		[]string{"kind"},
	)

	deletionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_deletion_runs_total",
			Help: "Total deletion runs",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records every request against its route template, so path
// parameters do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func SessionOpened() { sessionsActive.Inc() }
func SessionClosed() { sessionsActive.Dec() }

// RecordUpload records a finished upload.
func RecordUpload(bytes int64, success bool) {
	if success {
		uploadBytesTotal.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordDeletion records one deletion run and the items it removed.
func RecordDeletion(files, directories int, success bool) {
	deletedItemsTotal.WithLabelValues("file").Add(float64(files))
	deletedItemsTotal.WithLabelValues("directory").Add(float64(directories))
	deletionRunsTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
