package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novix"

// Interaction results
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultBusy     = "busy"
	ResultCanceled = "canceled"
)

// Metrics holds the collectors for sessions and interactions. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	SessionsActive      prometheus.Gauge
	SessionsCreated     prometheus.Counter
	SessionsRemoved     *prometheus.CounterVec
	WalletsAttached     prometheus.Counter
	Interactions        *prometheus.CounterVec
	InteractionDuration prometheus.Histogram
	Fragments           *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live agent sessions.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions successfully created.",
		}),
		SessionsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_removed_total",
			Help:      "Sessions removed, by reason.",
		}, []string{"reason"}),
		WalletsAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallets_attached_total",
			Help:      "Wallets attached to sessions.",
		}),
		Interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interactions by delivery mode and result.",
		}, []string{"mode", "result"}),
		InteractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interaction_duration_seconds",
			Help:      "Wall time of interactions.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Fragments delivered, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsActive,
			m.SessionsCreated,
			m.SessionsRemoved,
			m.WalletsAttached,
			m.Interactions,
			m.InteractionDuration,
			m.Fragments,
		)
	}
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionRemoved(reason string) {
	if m == nil {
		return
	}
	m.SessionsRemoved.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

func (m *Metrics) WalletAttached() {
	if m == nil {
		return
	}
	m.WalletsAttached.Inc()
}

func (m *Metrics) Fragment(kind string) {
	if m == nil {
		return
	}
	m.Fragments.WithLabelValues(kind).Inc()
}

func (m *Metrics) InteractionDone(mode, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Interactions.WithLabelValues(mode, result).Inc()
	m.InteractionDuration.Observe(elapsed.Seconds())
}

// Handler serves the collectors gathered by g in the exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
