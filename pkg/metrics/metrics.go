package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forecast pipeline metrics
var (
	// RequestsTotal counts façade operations by outcome ("ok" or an error kind)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_forecast_requests_total",
			Help: "Total number of forecast operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// FitDuration tracks fit+predict time of the forecasting model
	FitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_forecast_fit_duration_seconds",
			Help:    "Duration of model fit and prediction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// StoreFetchDuration tracks how long a collection scan takes
	StoreFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_forecast_store_fetch_duration_seconds",
			Help:    "Duration of document store scans in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// DocumentsFetched counts raw documents read from the store
	DocumentsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_forecast_documents_fetched_total",
			Help: "Total number of raw documents read from the document store",
		},
		[]string{"backend"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sales_forecast_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordOperation records the outcome of a façade operation.
func RecordOperation(operation, status string) {
	RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordFit records one fit+predict run
func RecordFit(duration time.Duration) {
	FitDuration.Observe(duration.Seconds())
}

// RecordFetch records a collection scan against a backend
func RecordFetch(backend string, duration time.Duration, documents int) {
	StoreFetchDuration.WithLabelValues(backend).Observe(duration.Seconds())
	DocumentsFetched.WithLabelValues(backend).Add(float64(documents))
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(path, method string, status int) {
	HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}
