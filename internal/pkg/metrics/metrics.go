/*
Package metrics registers the Prometheus metrics of the API and the HTTP middleware that feeds them.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sixmarket_http_requests_total",
			Help: "Total HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sixmarket_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// PresignedURLsTotal counts issued presigned URLs by mode ("upload" or "download").
	PresignedURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sixmarket_presigned_urls_total",
			Help: "Presigned URLs issued, by mode.",
		},
		[]string{"mode"},
	)

	// PresignFailuresTotal counts signing failures by mode.
	PresignFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sixmarket_presign_failures_total",
			Help: "Presigned URL generation failures, by mode.",
		},
		[]string{"mode"},
	)

	// DownloadURLCacheTotal counts download URL cache lookups by result ("hit" or "miss").
	DownloadURLCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sixmarket_download_url_cache_total",
			Help: "Download URL cache lookups, by result.",
		},
		[]string{"result"},
	)
)

// Middleware records request count and latency per chi route pattern.
// Using the pattern instead of the raw path keeps listing ids out of the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
