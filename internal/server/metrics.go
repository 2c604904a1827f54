package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry         *prometheus.Registry
	issuancesTotal   *prometheus.CounterVec
	broadcastsTotal  prometheus.Counter
	rateLimitedTotal prometheus.Counter
	requestDuration  *prometheus.HistogramVec
}

func newMetricsRegistry() *metricsRegistry {
	issuances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkrails_issuances_total",
		Help: "Total number of link issuance requests by outcome",
	}, []string{"status"})

	broadcasts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkrails_transactions_broadcast_total",
		Help: "Total number of deposit transactions broadcast",
	})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkrails_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkrails_request_duration_seconds",
		Help:    "HTTP request duration by path",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	r := prometheus.NewRegistry()
	r.MustRegister(issuances, broadcasts, rateLimited, duration)

	return &metricsRegistry{
		registry:         r,
		issuancesTotal:   issuances,
		broadcastsTotal:  broadcasts,
		rateLimitedTotal: rateLimited,
		requestDuration:  duration,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incIssuance(status string) {
	m.issuancesTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) addBroadcasts(n int) {
	m.broadcastsTotal.Add(float64(n))
}

func (m *metricsRegistry) incRateLimited() {
	m.rateLimitedTotal.Inc()
}

func (m *metricsRegistry) observeDuration(path string, seconds float64) {
	m.requestDuration.WithLabelValues(path).Observe(seconds)
}
