// Package metrics exposes Prometheus collectors for the status server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init registers the HTTP collectors on the default registry. It is
// safe to call more than once; the server constructor calls it per
// instance.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pinsweep",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests served by the status API, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pinsweep",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency of status API requests, labeled by method and route.",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
