package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payflow"

// Intake results recorded on payments_initiated_total.
const (
	ResultCreated = "created"
	ResultReplay  = "replay"
)

// Metrics holds the intake and settlement instruments. Each instance owns its
// registry so tests and multiple cores never collide on registration. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	initiated         *prometheus.CounterVec
	settled           *prometheus.CounterVec
	settlementLatency prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		initiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_initiated_total",
			Help:      "Payment initiation requests by result.",
		}, []string{"result"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_settled_total",
			Help:      "Payments moved to a terminal status.",
		}, []string{"status"}),
		settlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_latency_seconds",
			Help:      "Time from payment creation to settlement.",
			Buckets:   []float64{0.1, 0.5, 1, 1.5, 2, 5, 10, 30},
		}),
	}
	m.registry.MustRegister(m.initiated, m.settled, m.settlementLatency)
	return m
}

func (m *Metrics) Initiated(replay bool) {
	if m == nil {
		return
	}
	result := ResultCreated
	if replay {
		result = ResultReplay
	}
	m.initiated.WithLabelValues(result).Inc()
}

func (m *Metrics) Settled(status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(status).Inc()
	m.settlementLatency.Observe(latency.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
