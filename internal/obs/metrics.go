package obs

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	// GatewayRequests counts outbound catalog requests by endpoint and outcome.
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_store",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Outbound catalog backend requests.",
		},
		[]string{"endpoint", "status"},
	)

	// GatewayDuration observes outbound request latency.
	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog_store",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound catalog backend requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"endpoint"},
	)

	// StoreFetches counts store pipeline completions by kind and outcome.
	StoreFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_store",
			Subsystem: "store",
			Name:      "fetches_total",
			Help:      "Product list and detail pipeline completions.",
		},
		[]string{"kind", "outcome"},
	)

	// Subscribers tracks open store subscriptions.
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catalog_store",
			Subsystem: "store",
			Name:      "subscribers",
			Help:      "Open store subscriptions.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_store",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog_store",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		GatewayRequests,
		GatewayDuration,
		StoreFetches,
		Subscribers,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// MetricsHandler exposes the registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}
