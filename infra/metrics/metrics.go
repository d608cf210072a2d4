// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks inbound HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks inbound HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediapay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CallbacksTotal counts processed provider callbacks by outcome
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_callbacks_total",
			Help: "Provider callbacks by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// TransitionsTotal counts order status changes
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_order_transitions_total",
			Help: "Order status transitions",
		},
		[]string{"from", "to"},
	)

	// RefundsTotal counts refund attempts by outcome
	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_refunds_total",
			Help: "Refund requests by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ConflictsTotal counts lost compare-and-set races on order status
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_order_conflicts_total",
			Help: "Concurrent order modifications detected",
		},
		[]string{"provider"},
	)

	// ProviderRequestDuration tracks outbound calls to provider APIs
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediapay_provider_request_duration_seconds",
			Help:    "Outbound provider API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "op", "status"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediapay_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	// CircuitBreakerFailures counts calls that failed through a breaker
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapay_circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"provider"},
	)
)

// ObserveProviderCall records one outbound provider request
func ObserveProviderCall(provider, op string, status int, started time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ProviderRequestDuration.WithLabelValues(provider, op, label).Observe(time.Since(started).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. route resolves the route pattern
// after the handler ran so that path parameters do not explode label cardinality.
func Middleware(route func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			pattern := route(r)
			if pattern == "" {
				pattern = "unmatched"
			}
			RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
			RequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		})
	}
}
