// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilterEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geobrowser_filter_events_total",
		Help: "Filter events applied, by event type and outcome",
	}, []string{"type", "outcome"})
	ResultSetSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geobrowser_result_set_size",
		Help:    "Districts in the result set after each recomputation",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 400},
	})
	JoinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geobrowser_geometry_joins_total",
		Help: "Geometry recomputations",
	})
	JoinMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geobrowser_geometry_join_misses_total",
		Help: "Region names that resolved to no boundary feature",
	})
	JoinDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geobrowser_geometry_join_duration_ms",
		Help:    "Geometry join duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 250},
	})
	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geobrowser_dataset_loads_total",
		Help: "Dataset loads by resource and outcome",
	}, []string{"resource", "outcome"})
	DatasetLoadDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geobrowser_dataset_load_duration_ms",
		Help:    "Dataset load duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"resource"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geobrowser_sessions_active",
		Help: "Browser sessions currently held",
	})
	SessionEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geobrowser_session_evictions_total",
		Help: "Sessions dropped by capacity or expiry",
	})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geobrowser_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route", "status"})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geobrowser_backend_requests_total",
		Help: "Backend data-connection calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
)

func init() {
	prometheus.MustRegister(FilterEventsTotal)
	prometheus.MustRegister(ResultSetSize)
	prometheus.MustRegister(JoinsTotal)
	prometheus.MustRegister(JoinMissesTotal)
	prometheus.MustRegister(JoinDurationMs)
	prometheus.MustRegister(DatasetLoadsTotal)
	prometheus.MustRegister(DatasetLoadDurationMs)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionEvictionsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
	prometheus.MustRegister(BackendRequestsTotal)
}

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
