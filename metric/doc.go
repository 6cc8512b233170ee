// Package metric provides Prometheus-based metrics for traitstore clients
// and an HTTP server exposing them.
//
// A MetricsRegistry carries two kinds of metrics:
//
//  1. Core metrics (Metrics type): transport requests, responses, latency,
//     and the NATS and WebSocket connection gauges. These are registered
//     when the registry is created.
//  2. Component metrics, registered through the MetricsRegistrar interface
//     by packages such as subscription.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop(context.Background())
//
//	subMetrics, err := subscription.NewMetrics(registry)
//
// The server exposes Prometheus-formatted metrics at the configured path and
// a liveness check at /health.
//
// All metrics live under the "traitstore" namespace. Registering the same
// service/metric pair twice returns an invalid-class error, as does a name
// clash at the Prometheus level.
package metric
