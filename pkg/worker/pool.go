// Package worker provides a keyed worker pool: work submitted under the same
// key is processed by one goroutine in submission order, while different keys
// proceed in parallel across lanes.
package worker

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/semlink/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Pool processes work items of type T on a fixed set of FIFO lanes
type Pool[T any] struct {
	// Configuration
	lanes     int
	queueSize int
	processor func(context.Context, T) error

	// Runtime state
	queues  []chan T
	metrics *Metrics
	wg      *sync.WaitGroup

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// Statistics (atomic)
	submitted int64
	processed int64
	failed    int64
	dropped   int64

	// Metrics configuration
	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	queueDepth     *prometheus.GaugeVec
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers pool metrics under prefix as the component label
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewPool creates a pool with the given number of lanes, each buffering up to
// queueSize items
func NewPool[T any](lanes, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if lanes <= 0 {
		lanes = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		lanes:     lanes,
		queueSize: queueSize,
		processor: processor,
		queues:    make([]chan T, lanes),
	}
	for i := range pool.queues {
		pool.queues[i] = make(chan T, queueSize)
	}

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}

	return pool
}

// initializeMetrics creates and registers metrics with the registry
func (p *Pool[T]) initializeMetrics() {
	labels := prometheus.Labels{"component": p.metricsPrefix}

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "queue_depth",
		ConstLabels: labels,
		Help:        "Current number of queued items per lane",
	}, []string{"lane"})
	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "submitted_total",
		ConstLabels: labels,
		Help:        "Total work items submitted",
	})
	processed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "processed_total",
		ConstLabels: labels,
		Help:        "Total work items processed",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "failed_total",
		ConstLabels: labels,
		Help:        "Total work items that failed processing",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "dropped_total",
		ConstLabels: labels,
		Help:        "Total work items rejected because a lane was full",
	})
	processingTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "lanes",
		Name:        "processing_duration_seconds",
		ConstLabels: labels,
		Help:        "Time spent processing work items",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"status"})

	// Registration failures leave the pool without metrics rather than failing construction
	reg := p.metricsRegistry
	if reg.RegisterGaugeVec(p.metricsPrefix, "lanes_queue_depth", queueDepth) != nil ||
		reg.RegisterCounter(p.metricsPrefix, "lanes_submitted", submitted) != nil ||
		reg.RegisterCounter(p.metricsPrefix, "lanes_processed", processed) != nil ||
		reg.RegisterCounter(p.metricsPrefix, "lanes_failed", failed) != nil ||
		reg.RegisterCounter(p.metricsPrefix, "lanes_dropped", dropped) != nil ||
		reg.RegisterHistogramVec(p.metricsPrefix, "lanes_processing_duration", processingTime) != nil {
		return
	}

	p.metrics = &Metrics{
		queueDepth:     queueDepth,
		submitted:      submitted,
		processed:      processed,
		failed:         failed,
		dropped:        dropped,
		processingTime: processingTime,
	}
}

// Lane returns the lane index that work submitted under key is processed on
func (p *Pool[T]) Lane(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.lanes))
}

// Submit queues work on the lane for key without blocking. Returns
// ErrQueueFull if that lane is at capacity.
func (p *Pool[T]) Submit(key string, work T) error {
	return p.SubmitAll([]string{key}, func(string) T { return work })
}

// SubmitAll queues work(key) for every key, or nothing. If any lane lacks
// room for its share of keys no item is queued and ErrQueueFull is returned.
func (p *Pool[T]) SubmitAll(keys []string, work func(key string) T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if !p.started {
		return ErrPoolNotStarted
	}

	// Lanes are only filled under lifecycleMu, so free space checked here
	// cannot shrink before the sends below.
	need := make(map[int]int, len(keys))
	for _, key := range keys {
		need[p.Lane(key)]++
	}
	for lane, n := range need {
		if cap(p.queues[lane])-len(p.queues[lane]) < n {
			atomic.AddInt64(&p.dropped, int64(len(keys)))
			if p.metrics != nil {
				p.metrics.dropped.Add(float64(len(keys)))
			}
			return ErrQueueFull
		}
	}

	for _, key := range keys {
		lane := p.Lane(key)
		p.queues[lane] <- work(key)
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.WithLabelValues(strconv.Itoa(lane)).Set(float64(len(p.queues[lane])))
		}
	}
	return nil
}

// Start starts one goroutine per lane. Cancelling ctx abandons queued work;
// use Stop to drain.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	// A stopped pool cannot be restarted, whether or not it ever ran
	if p.stopped {
		return ErrPoolStopped
	}
	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}
	for i := range p.queues {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.started = true
	return nil
}

// Stop closes every lane and waits up to timeout for queued work to finish
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	if !p.started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	depth := 0
	for _, q := range p.queues {
		depth += len(q)
	}
	return PoolStats{
		Lanes:      p.lanes,
		QueueSize:  p.queueSize,
		QueueDepth: depth,
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Lanes      int   `json:"lanes"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// worker processes one lane in order until it is closed and empty
func (p *Pool[T]) worker(ctx context.Context, lane int) {
	defer p.wg.Done()

	queue := p.queues[lane]
	label := strconv.Itoa(lane)
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-queue:
			if !ok {
				return
			}
			// select picks at random when both are ready; cancellation wins
			if ctx.Err() != nil {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)
			duration := time.Since(start)

			atomic.AddInt64(&p.processed, 1)
			if err != nil {
				atomic.AddInt64(&p.failed, 1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
				p.metrics.queueDepth.WithLabelValues(label).Set(float64(len(queue)))
			}
		}
	}
}
