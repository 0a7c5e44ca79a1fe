// Package metric provides Prometheus metrics for semlink robots.
//
// MetricsRegistry wraps a prometheus.Registry. It registers the core protocol
// metrics (events emitted by kind, messages received and published, publish
// errors, driver and NATS status) plus Go runtime collectors, and lets
// components such as the dedup cache register their own collectors under a
// component key.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go server.Run(ctx)
//
//	registry.CoreMetrics().RecordEvent("vasya", "command")
//
// Server.Run blocks until ctx is cancelled and shuts the listener down
// gracefully. /health returns "OK" unless replaced with WithHealthHandler.
package metric
