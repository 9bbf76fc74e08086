// Package metrics exposes Prometheus instrumentation for the resource hub:
// an event sink counting uploads and downloads, and HTTP request metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

// Metrics holds the collectors registered for one process
type Metrics struct {
	uploadsTotal        *prometheus.CounterVec
	uploadBytesTotal    prometheus.Counter
	downloadsTotal      *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them through promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_uploads_total",
			Help: "Resources uploaded, by subject.",
		}, []string{"subject"}),
		uploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "resourcehub_upload_bytes_total",
			Help: "Bytes stored by successful uploads.",
		}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_downloads_total",
			Help: "Resolved downloads, by subject.",
		}, []string{"subject"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resourcehub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// ResourceUploaded implements resourcehub.EventSink
func (m *Metrics) ResourceUploaded(ctx context.Context, resource *resourcehub.Resource) error {
	m.uploadsTotal.WithLabelValues(resource.Subject).Inc()
	m.uploadBytesTotal.Add(float64(resource.FileSize))
	return nil
}

// ResourceDownloaded implements resourcehub.EventSink
func (m *Metrics) ResourceDownloaded(ctx context.Context, resource *resourcehub.Resource) error {
	m.downloadsTotal.WithLabelValues(resource.Subject).Inc()
	return nil
}

// Middleware records request count and latency. The path label is the chi
// route pattern, so ids do not inflate cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := newStatusRecorder(w)
		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the original writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
