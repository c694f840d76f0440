package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's Prometheus collectors.
type Metrics struct {
	Predictions     *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	HistoryErrors   prometheus.Counter
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafgrade_predictions_total",
				Help: "Accepted images by predicted label",
			}, []string{"label"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafgrade_rejections_total",
				Help: "Images skipped before prediction, by reason",
			}, []string{"reason"},
		),
		HistoryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "leafgrade_history_append_errors_total",
				Help: "Failed appends to the prediction log",
			},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"path"},
		),
	}
	reg.MustRegister(m.Predictions, m.Rejections, m.HistoryErrors, m.Requests, m.RequestDuration)
	return m
}
