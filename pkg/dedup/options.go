package dedup

import (
	"time"

	"github.com/c360/semlink/metric"
)

// Option configures a Cache using the functional options pattern.
type Option func(*options)

type options struct {
	// metricsReg is optional; when set, statistics are also exported to Prometheus
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is the component label for Prometheus metrics
	metricsPrefix string

	clock func() time.Time
}

// WithMetrics enables Prometheus metrics export. Ignored if registry is nil
// or prefix is empty.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(o *options) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

// WithClock replaces time.Now as the source of first-seen timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
