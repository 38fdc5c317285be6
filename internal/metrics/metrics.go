package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the escrow service collectors on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry          *prometheus.Registry
	transitionsTotal  *prometheus.CounterVec
	notarizeDuration  prometheus.Histogram
	notarizeFailures  prometheus.Counter
	listenerPanics    prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	brokenChains      prometheus.Gauge
	chainAuditsTotal  *prometheus.CounterVec
}

func New() *Registry {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow",
		Name:      "transitions_total",
		Help:      "Engine operations segmented by operation and outcome",
	}, []string{"operation", "outcome"})

	notarize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "escrow",
		Subsystem: "notary",
		Name:      "duration_seconds",
		Help:      "Latency of notarization calls",
		Buckets:   prometheus.DefBuckets,
	})

	notarizeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "escrow",
		Subsystem: "notary",
		Name:      "failures_total",
		Help:      "Notarization calls that failed or timed out",
	})

	panics := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "escrow",
		Name:      "listener_panics_total",
		Help:      "Event listeners that panicked and were recovered",
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests segmented by method, route and status code",
	}, []string{"method", "route", "status"})

	brokenChains := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "escrow",
		Subsystem: "notary",
		Name:      "broken_chains",
		Help:      "Escrows whose notarization chain failed the last audit",
	})

	chainAudits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow",
		Subsystem: "notary",
		Name:      "chain_audits_total",
		Help:      "Chain audit sweeps segmented by outcome",
	}, []string{"outcome"})

	r := prometheus.NewRegistry()
	r.MustRegister(transitions, notarize, notarizeFailures, panics, httpRequests, brokenChains, chainAudits)

	return &Registry{
		registry:          r,
		transitionsTotal:  transitions,
		notarizeDuration:  notarize,
		notarizeFailures:  notarizeFailures,
		listenerPanics:    panics,
		httpRequestsTotal: httpRequests,
		brokenChains:      brokenChains,
		chainAuditsTotal:  chainAudits,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Registry) IncTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Registry) ObserveNotarize(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.notarizeDuration.Observe(d.Seconds())
	if err != nil {
		m.notarizeFailures.Inc()
	}
}

func (m *Registry) IncListenerPanic() {
	if m == nil {
		return
	}
	m.listenerPanics.Inc()
}

func (m *Registry) IncHTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordChainAudit stores the result of one audit sweep.
func (m *Registry) RecordChainAudit(broken int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.chainAuditsTotal.WithLabelValues("error").Inc()
		return
	}
	m.chainAuditsTotal.WithLabelValues("ok").Inc()
	m.brokenChains.Set(float64(broken))
}
