package dedup

import (
	"github.com/c360/semlink/metric"
	"github.com/prometheus/client_golang/prometheus"
)

type dedupMetrics struct {
	duplicates prometheus.Counter
	records    prometheus.Counter
	evictions  prometheus.Counter
	size       prometheus.Gauge
}

func newDedupMetrics(registry *metric.MetricsRegistry, prefix string) (*dedupMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &dedupMetrics{
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "dedup",
			Name:        "duplicates_total",
			ConstLabels: labels,
			Help:        "Total number of suppressed duplicate identities",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "dedup",
			Name:        "records_total",
			ConstLabels: labels,
			Help:        "Total number of identities recorded at first sight",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "dedup",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of records removed by pruning",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "dedup",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of records",
		}),
	}

	if err := registry.RegisterCounter(prefix, "dedup_duplicates", m.duplicates); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "dedup_records", m.records); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "dedup_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "dedup_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *dedupMetrics) recordDuplicate() {
	m.duplicates.Inc()
}

func (m *dedupMetrics) recordRecord() {
	m.records.Inc()
}

func (m *dedupMetrics) recordEvictions(n int) {
	m.evictions.Add(float64(n))
}

func (m *dedupMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
