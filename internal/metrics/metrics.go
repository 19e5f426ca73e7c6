// Package metrics holds the Prometheus collectors for the ledger, the payment gateway and
// the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"feepay-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feepay_ledger_operations_total",
			Help: "Ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	ledgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feepay_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including the database transaction",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feepay_gateway_requests_total",
			Help: "Mobile money gateway requests by outcome",
		},
		[]string{"operation", "outcome"},
	)

	callbacksApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feepay_gateway_callbacks_total",
			Help: "Gateway status updates by how they were applied",
		},
		[]string{"source", "result"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feepay_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feepay_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome maps an error onto a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrGateway):
		return "gateway_error"
	default:
		return "error"
	}
}

// ObserveLedger records one ledger operation that started at start.
func ObserveLedger(operation string, start time.Time, err error) {
	ledgerOperations.WithLabelValues(operation, Outcome(err)).Inc()
	ledgerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObserveGateway(operation string, err error) {
	gatewayRequests.WithLabelValues(operation, Outcome(err)).Inc()
}

// ObserveCallback records how a gateway status update was applied, e.g. source "webhook",
// result "completed" or "ignored".
func ObserveCallback(source, result string) {
	callbacksApplied.WithLabelValues(source, result).Inc()
}

func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
