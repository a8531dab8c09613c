// Package metrics exposes Prometheus collectors for the document store,
// live subscriptions and admin sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	documentWrites *prometheus.CounterVec
	subscriptions  *prometheus.GaugeVec
	snapshots      *prometheus.CounterVec
	sessions       prometheus.Gauge
	commandErrors  *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "katalog_document_writes_total",
			Help: "Document store writes by collection, operation and result",
		}, []string{"collection", "op", "result"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "katalog_subscriptions_active",
			Help: "Active live subscriptions by collection",
		}, []string{"collection"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "katalog_snapshots_delivered_total",
			Help: "Snapshots delivered to subscribers by collection and result",
		}, []string{"collection", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "katalog_sessions_open",
			Help: "Signed-in browser sessions with live state",
		}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "katalog_command_errors_total",
			Help: "Failed CRUD commands by command name",
		}, []string{"command"}),
	}

	cs := []prometheus.Collector{
		m.documentWrites,
		m.subscriptions,
		m.snapshots,
		m.sessions,
		m.commandErrors,
		collectors.NewGoCollector(),
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DocumentWrite(collection, op string, err error) {
	if m == nil {
		return
	}
	m.documentWrites.WithLabelValues(collection, op, result(err)).Inc()
}

func (m *Metrics) SubscriptionOpened(collection string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionClosed(collection string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(collection).Dec()
}

func (m *Metrics) SnapshotDelivered(collection string, err error) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(collection, result(err)).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) CommandFailed(command string) {
	if m == nil {
		return
	}
	m.commandErrors.WithLabelValues(command).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
