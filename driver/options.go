package driver

import (
	"log/slog"
	"time"

	"github.com/c360/semlink/metric"
)

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics reports driver, dedup and publish lane metrics to registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(d *Driver) {
		d.metricsRegistry = registry
	}
}

// WithHandler adds an event handler. Equivalent to calling OnEvent.
func WithHandler(h Handler) Option {
	return func(d *Driver) {
		if h != nil {
			d.handlers = append(d.handlers, h)
		}
	}
}

// WithClock replaces time.Now for dedup timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithIDGenerator replaces the envelope id generator
func WithIDGenerator(fn func() string) Option {
	return func(d *Driver) {
		d.newID = fn
	}
}

// WithNoiseLogLimit bounds how many noise messages are logged per second.
// Suppressed noise is still counted and emitted.
func WithNoiseLogLimit(perSecond float64, burst int) Option {
	return func(d *Driver) {
		d.noiseLogRate = perSecond
		d.noiseLogBurst = burst
	}
}
