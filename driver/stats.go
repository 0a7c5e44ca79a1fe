package driver

import (
	"sync/atomic"
	"time"
)

// Stats counts driver activity. All fields are updated atomically.
type Stats struct {
	received      atomic.Int64
	duplicates    atomic.Int64
	noise         atomic.Int64
	noiseLogged   atomic.Int64
	published     atomic.Int64
	publishErrors atomic.Int64
	lastActivity  atomic.Int64 // unix nanos
	emitted       [KindMessage + 1]atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Received      int64            `json:"received"`
	Duplicates    int64            `json:"duplicates"`
	Noise         int64            `json:"noise"`
	NoiseLogged   int64            `json:"noise_logged"`
	Emitted       int64            `json:"emitted"`
	ByKind        map[string]int64 `json:"by_kind"`
	Published     int64            `json:"published"`
	PublishErrors int64            `json:"publish_errors"`
	LastActivity  time.Time        `json:"last_activity"`
}

func (s *Stats) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

// Stats returns a snapshot of the driver counters
func (d *Driver) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		Received:      d.stats.received.Load(),
		Duplicates:    d.stats.duplicates.Load(),
		Noise:         d.stats.noise.Load(),
		NoiseLogged:   d.stats.noiseLogged.Load(),
		Published:     d.stats.published.Load(),
		PublishErrors: d.stats.publishErrors.Load(),
		ByKind:        make(map[string]int64, len(d.stats.emitted)),
	}
	for k := range d.stats.emitted {
		n := d.stats.emitted[k].Load()
		snap.ByKind[Kind(k).String()] = n
		snap.Emitted += n
	}
	if ns := d.stats.lastActivity.Load(); ns != 0 {
		snap.LastActivity = time.Unix(0, ns)
	}
	return snap
}
