// Package telemetry exposes Prometheus collectors for the dashboard server:
// HTTP traffic, calls to the remote prediction API, the risk fan-out, patient
// mutations and live tab sessions.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

// Outcome labels for remote calls.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeBadBody   = "bad_body"
	OutcomeTransport = "transport"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to the prediction API by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	remoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Prediction API call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	riskFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_fetch_failures_total",
			Help:      "Per-patient risk lookups that failed during a directory load",
		},
	)

	patientMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_mutations_total",
			Help:      "Patient creations and discharges sent to the prediction API, by response status",
		},
		[]string{"action", "status"},
	)

	tabSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tab_sessions",
			Help:      "Number of live tab sessions",
		},
	)
)

// Handler serves the Prometheus exposition format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts and latencies labelled by route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordRemoteCall records one prediction API call.
func RecordRemoteCall(operation, outcome string, d time.Duration) {
	remoteCallsTotal.WithLabelValues(operation, outcome).Inc()
	remoteCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRiskFetchFailure counts a risk lookup that was dropped from a directory load.
func RecordRiskFetchFailure() {
	riskFetchFailures.Inc()
}

// RecordPatientMutation counts one audited patient mutation.
func RecordPatientMutation(action string, status int) {
	patientMutations.WithLabelValues(action, strconv.Itoa(status)).Inc()
}

func TabSessionOpened() { tabSessions.Inc() }

func TabSessionClosed() { tabSessions.Dec() }
