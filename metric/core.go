package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every semlink metric name.
const Namespace = "semlink"

// Metrics contains the protocol-level metrics shared by every robot in the process
type Metrics struct {
	DriverStatus      *prometheus.GaugeVec
	EventsEmitted     *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		DriverStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "driver",
				Name:      "status",
				Help:      "Driver lifecycle state (0=created, 1=running, 2=halted)",
			},
			[]string{"robot"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Total number of events emitted, by kind",
			},
			[]string{"robot", "kind"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of raw messages delivered by the transport",
			},
			[]string{"robot"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of messages published",
			},
			[]string{"robot", "topic"},
		),

		PublishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "messages",
				Name:      "publish_errors_total",
				Help:      "Total number of failed publishes",
			},
			[]string{"robot"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
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
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.DriverStatus,
		c.EventsEmitted,
		c.MessagesReceived,
		c.MessagesPublished,
		c.PublishErrors,
		c.HealthCheckStatus,
		c.NATSConnected,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

// RecordDriverStatus updates the driver lifecycle gauge
func (c *Metrics) RecordDriverStatus(robot string, state int) {
	c.DriverStatus.WithLabelValues(robot).Set(float64(state))
}

// RecordEvent increments the emitted event counter
func (c *Metrics) RecordEvent(robot, kind string) {
	c.EventsEmitted.WithLabelValues(robot, kind).Inc()
}

// RecordMessageReceived increments the raw inbound counter
func (c *Metrics) RecordMessageReceived(robot string) {
	c.MessagesReceived.WithLabelValues(robot).Inc()
}

// RecordMessagePublished increments the published counter for topic
func (c *Metrics) RecordMessagePublished(robot, topic string) {
	c.MessagesPublished.WithLabelValues(robot, topic).Inc()
}

// RecordPublishError increments the publish failure counter
func (c *Metrics) RecordPublishError(robot string) {
	c.PublishErrors.WithLabelValues(robot).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
