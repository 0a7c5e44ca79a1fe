package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/semlink/errors"
)

// Cache records message identities with their first-seen time and answers
// whether an identity was already processed within the retention window.
// Records are removed only by Prune, either called directly or by the sweep
// goroutine started with Start.
type Cache struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]time.Time
	now     func() time.Time
	stats   *Statistics
	metrics *dedupMetrics

	// Sweep coordination
	started  bool
	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a cache that forgets identities once they are older than window.
// Returns an error if window is not positive or metrics registration fails.
func New(window time.Duration, opts ...Option) (*Cache, error) {
	if window <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: window must be positive, got %v", errors.ErrInvalidConfig, window),
			"dedup", "New", "validate window")
	}

	o := applyOptions(opts...)

	var metrics *dedupMetrics
	if o.metricsReg != nil && o.metricsPrefix != "" {
		var err error
		metrics, err = newDedupMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "dedup", "New", "metrics registration")
		}
	}

	return &Cache{
		window:   window,
		records:  make(map[string]time.Time),
		now:      o.clock,
		stats:    NewStatistics(),
		metrics:  metrics,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Seen reports whether id was already recorded. If it was not, id is recorded
// at the current time in the same critical section, so concurrent callers
// racing on one id observe exactly one false.
func (c *Cache) Seen(id string) bool {
	now := c.now()

	c.mu.Lock()
	_, exists := c.records[id]
	if !exists {
		c.records[id] = now
	}
	size := len(c.records)
	c.mu.Unlock()

	if exists {
		c.stats.Duplicate()
		if c.metrics != nil {
			c.metrics.recordDuplicate()
		}
		return true
	}

	c.stats.Record()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordRecord()
		c.metrics.updateSize(size)
	}
	return false
}

// Prune removes every record whose age at now exceeds the window and returns
// how many were removed. A record exactly window old is kept.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	removed := 0
	for id, firstSeen := range c.records {
		if now.Sub(firstSeen) > c.window {
			delete(c.records, id)
			removed++
		}
	}
	size := len(c.records)
	c.mu.Unlock()

	if removed > 0 {
		c.stats.Evictions(int64(removed))
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.recordEvictions(removed)
			c.metrics.updateSize(size)
		}
	}
	return removed
}

// Start runs Prune every interval until ctx is cancelled or Close is called.
func (c *Cache) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: prune interval must be positive, got %v", errors.ErrInvalidConfig, interval),
			"dedup", "Start", "validate interval")
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "dedup", "Start", "start sweep")
	}
	c.started = true
	c.mu.Unlock()

	go c.sweep(ctx, interval)
	return nil
}

// Close stops the sweep goroutine and waits for it to exit. After Close
// returns no prune fires. Close is idempotent and safe without Start.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() {
		close(c.shutdown)
	})

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(fmt.Errorf("timeout waiting for prune goroutine"),
			"dedup", "Close", "stop sweep")
	}
}

// Size returns the current number of records.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Window returns the retention window.
func (c *Cache) Window() time.Duration {
	return c.window
}

// Stats returns the cache statistics.
func (c *Cache) Stats() *Statistics {
	return c.stats
}

func (c *Cache) sweep(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.Prune(c.now())
		}
	}
}
