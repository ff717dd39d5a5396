package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the proposal lifecycle and the
// codec. A nil *Metrics is a valid no-op receiver, so callers never guard
// their instrumentation sites.
type Metrics struct {
	config MetricsConfig

	proposalsCreated *prometheus.CounterVec
	votesCast        *prometheus.CounterVec
	performsRecorded *prometheus.CounterVec
	codecFailures    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration. When
// metrics are disabled it returns nil, which every method accepts.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,
		proposalsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_created_total",
				Help:      "Total number of proposals created",
			},
			[]string{"category"},
		),
		votesCast: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_cast_total",
				Help:      "Total number of votes recorded",
			},
			[]string{"affirm"},
		),
		performsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "performs_recorded_total",
				Help:      "Total number of performed proposals by outcome",
			},
			[]string{"outcome"},
		),
		codecFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "codec_failures_total",
				Help:      "Total number of codec failures by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.proposalsCreated,
		m.votesCast,
		m.performsRecorded,
		m.codecFailures,
	)
	return m, nil
}

// ProposalCreated counts one created proposal.
func (m *Metrics) ProposalCreated(category string) {
	if m == nil {
		return
	}
	m.proposalsCreated.WithLabelValues(category).Inc()
}

// VoteCast counts one recorded vote.
func (m *Metrics) VoteCast(affirm bool) {
	if m == nil {
		return
	}
	label := "false"
	if affirm {
		label = "true"
	}
	m.votesCast.WithLabelValues(label).Inc()
}

// PerformRecorded counts one performed proposal by outcome kind.
func (m *Metrics) PerformRecorded(outcome string) {
	if m == nil {
		return
	}
	m.performsRecorded.WithLabelValues(outcome).Inc()
}

// CodecFailure counts one codec failure (parse, encode, decode).
func (m *Metrics) CodecFailure(kind string) {
	if m == nil {
		return
	}
	m.codecFailures.WithLabelValues(kind).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ListenAndServe serves the metrics endpoint on the configured address. It
// blocks until the server stops.
func (m *Metrics) ListenAndServe() error {
	if m == nil {
		return nil
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	return http.ListenAndServe(m.config.ListenAddress, mux)
}
