package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the agent.
type Metrics struct {
	FlowOutcomes *prometheus.CounterVec // labels: outcome

	// Air-quality provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	LatestAQI        prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FlowOutcomes,
		m.ProviderRequests,
		m.ProviderDuration,
		m.LatestAQI,
		m.GeocodeRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FlowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airquality",
			Name:      "location_flow_outcomes_total",
			Help:      "Location acquisition flows by terminal outcome.",
		}, []string{"outcome"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airquality",
			Name:      "provider_requests_total",
			Help:      "Air-quality provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airquality",
			Name:      "provider_request_duration_seconds",
			Help:      "Air-quality provider request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		LatestAQI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airquality",
			Name:      "latest_aqi_us",
			Help:      "US AQI of the most recent snapshot.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airquality",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding lookups by outcome.",
		}, []string{"outcome"}),
	}
}
