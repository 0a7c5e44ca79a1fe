package dedup

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks dedup cache activity.
type Statistics struct {
	duplicates int64
	records    int64
	evictions  int64

	// Protected by mutex
	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Duplicate records a suppressed duplicate.
func (s *Statistics) Duplicate() {
	atomic.AddInt64(&s.duplicates, 1)
}

// Record records a first sighting.
func (s *Statistics) Record() {
	atomic.AddInt64(&s.records, 1)
}

// Evictions records n pruned entries.
func (s *Statistics) Evictions(n int64) {
	atomic.AddInt64(&s.evictions, n)
}

// UpdateSize updates the current cache size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Duplicates returns how many sightings were suppressed.
func (s *Statistics) Duplicates() int64 {
	return atomic.LoadInt64(&s.duplicates)
}

// Records returns how many identities were recorded.
func (s *Statistics) Records() int64 {
	return atomic.LoadInt64(&s.records)
}

// Evicted returns how many records were pruned.
func (s *Statistics) Evicted() int64 {
	return atomic.LoadInt64(&s.evictions)
}

// CurrentSize returns the size after the last change.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the largest size observed.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// DuplicateRatio returns duplicates / (duplicates + records).
func (s *Statistics) DuplicateRatio() float64 {
	dups := s.Duplicates()
	total := dups + s.Records()
	if total == 0 {
		return 0
	}
	return float64(dups) / float64(total)
}

// Uptime returns how long the statistics have been collected.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}
