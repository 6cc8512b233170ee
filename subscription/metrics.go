package subscription

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/traitstore/metric"
)

// Outcome labels
const (
	outcomeDone      = "done"
	outcomeError     = "error"
	outcomeDecode    = "decode_error"
	outcomeCancelled = "cancelled"
)

// Metrics tracks subscription traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	activeWatches prometheus.Gauge
	releases      prometheus.Counter
	discarded     *prometheus.CounterVec
}

// NewMetrics creates subscription metrics and registers them with registry
// under the "subscription" service name. A nil registry leaves them
// unregistered, which is useful in tests.
func NewMetrics(registry metric.MetricsRegistrar) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "requests_total",
			Help:      "Operations sent to the transport",
		}, []string{"op"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "outcomes_total",
			Help:      "Terminal outcomes by operation",
		}, []string{"op", "outcome"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "decode_errors_total",
			Help:      "Result payloads that failed to decode",
		}, []string{"op"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "cancellations_total",
			Help:      "Operations cancelled before a terminal status",
		}, []string{"op"}),
		activeWatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "active_watches",
			Help:      "Watched queries currently registered",
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "callback_releases_total",
			Help:      "Registry entries released",
		}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "subscription",
			Name:      "discarded_callbacks_total",
			Help:      "Callbacks that arrived after their operation was released",
		}, []string{"op"}),
	}

	if registry == nil {
		return m, nil
	}

	const service = "subscription"
	for name, c := range map[string]*prometheus.CounterVec{
		"requests_total":            m.requests,
		"outcomes_total":            m.outcomes,
		"decode_errors_total":       m.decodeErrors,
		"cancellations_total":       m.cancellations,
		"discarded_callbacks_total": m.discarded,
	} {
		if err := registry.RegisterCounterVec(service, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(service, "active_watches", m.activeWatches); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(service, "callback_releases_total", m.releases); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) request(op opKind) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op.String()).Inc()
	if op == opWatch {
		m.activeWatches.Inc()
	}
}

func (m *Metrics) outcome(op opKind, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(op.String(), outcome).Inc()
	m.releases.Inc()
	if op == opWatch {
		m.activeWatches.Dec()
	}
	if outcome == outcomeCancelled {
		m.cancellations.WithLabelValues(op.String()).Inc()
	}
}

func (m *Metrics) decodeError(op opKind) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) discard(op opKind) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(op.String()).Inc()
}
