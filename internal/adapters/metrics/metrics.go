package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	ParcelTransitions *prometheus.CounterVec
	RateLimited       *prometheus.CounterVec
}

// New registers the service collectors, plus Go and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ParcelTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_parcel_status_transitions_total",
				Help: "Parcel status transitions by target status",
			},
			[]string{"to"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"prefix"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransition records a successful status change. A nil receiver is a no-op.
func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.ParcelTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveRateLimited(prefix string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(prefix).Inc()
}
