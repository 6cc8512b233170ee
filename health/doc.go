// Package health reports the state of a trait store client's connections
// on demand.
//
// A Monitor holds named Checks. Each request to its Handler runs every check
// and folds the results with Aggregate:
//   - any unhealthy connection makes the system unhealthy (HTTP 503)
//   - otherwise any degraded connection makes it degraded (HTTP 200)
//   - otherwise it is healthy
//
// Messages are sanitized before they are served, so addresses, paths and
// credentials from connection errors never reach a probe.
//
// # Usage
//
//	monitor := health.NewMonitor("traitctl")
//	monitor.Register("nats", health.NATSCheck(natsClient))
//
//	server := metric.NewServer(":9090", "/metrics", registry)
//	server.HandleHealth(monitor.Handler())
//
// A websocket transport exposes its lifetime as a channel:
//
//	monitor.Register("websocket", health.DoneCheck("websocket", t.Done()))
package health
