package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the service.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	TokenRefreshes   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
	StatesDecoded    prometheus.Counter
	StatesDropped    prometheus.Counter
}

// New creates the metrics collector with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flighttracker_upstream_requests_total",
			Help: "Requests issued to the OpenSky API, by endpoint.",
		}, []string{"endpoint"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flighttracker_upstream_errors_total",
			Help: "Failed OpenSky API requests, by endpoint and reason.",
		}, []string{"endpoint", "reason"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flighttracker_upstream_latency_seconds",
			Help:    "Latency of OpenSky API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flighttracker_token_refreshes_total",
			Help: "OAuth2 token exchanges performed.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flighttracker_http_requests_total",
			Help: "Consumer HTTP requests served, by route.",
		}, []string{"route"}),
		StatesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flighttracker_states_decoded_total",
			Help: "State vectors decoded successfully.",
		}),
		StatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flighttracker_states_dropped_total",
			Help: "Malformed state vectors dropped during decoding.",
		}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamErrors,
		m.UpstreamLatency,
		m.TokenRefreshes,
		m.HTTPRequests,
		m.StatesDecoded,
		m.StatesDropped,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
