package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Circuit breaker gauge values
const (
	CircuitClosed = 0
	CircuitOpen   = 1
)

// Metrics contains the transport-level metrics shared by every client.
// Methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Transport metrics, labelled by transport name ("nats", "websocket")
	TransportRequests  *prometheus.CounterVec
	TransportResponses *prometheus.CounterVec
	TransportLatency   *prometheus.HistogramVec
	TransportErrors    *prometheus.CounterVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge

	// WebSocket metrics
	WebSocketConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		TransportRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "Requests sent to the store",
			},
			[]string{"transport", "op"},
		),

		TransportResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "responses_total",
				Help:      "Responses received from the store by status",
			},
			[]string{"transport", "op", "status"},
		),

		TransportLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "first_response_seconds",
				Help:      "Time from send to the first response",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"transport", "op"},
		),

		TransportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "errors_total",
				Help:      "Transport failures by kind",
			},
			[]string{"transport", "kind"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open)",
			},
		),

		WebSocketConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "websocket",
				Name:      "connected",
				Help:      "WebSocket connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.TransportRequests,
		c.TransportResponses,
		c.TransportLatency,
		c.TransportErrors,
		c.NATSConnected,
		c.NATSRTT,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
		c.WebSocketConnected,
	}
}

// RecordRequest increments the request counter
func (c *Metrics) RecordRequest(transport, op string) {
	if c == nil {
		return
	}
	c.TransportRequests.WithLabelValues(transport, op).Inc()
}

// RecordResponse increments the response counter for a status
func (c *Metrics) RecordResponse(transport, op, status string) {
	if c == nil {
		return
	}
	c.TransportResponses.WithLabelValues(transport, op, status).Inc()
}

// RecordLatency records time to the first response
func (c *Metrics) RecordLatency(transport, op string, d time.Duration) {
	if c == nil {
		return
	}
	c.TransportLatency.WithLabelValues(transport, op).Observe(d.Seconds())
}

// RecordTransportError increments the transport error counter
func (c *Metrics) RecordTransportError(transport, kind string) {
	if c == nil {
		return
	}
	c.TransportErrors.WithLabelValues(transport, kind).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	c.NATSConnected.Set(boolValue(connected))
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	if c == nil {
		return
	}
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	if c == nil {
		return
	}
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	if c == nil {
		return
	}
	c.NATSCircuitBreaker.Set(float64(state))
}

// RecordWebSocketStatus updates WebSocket connection status
func (c *Metrics) RecordWebSocketStatus(connected bool) {
	if c == nil {
		return
	}
	c.WebSocketConnected.Set(boolValue(connected))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
