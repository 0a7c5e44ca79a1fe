// Package dedup provides the time-windowed idempotency guard used to turn
// at-least-once pub/sub delivery into effectively-once processing.
//
// A message published once may reach a subscriber on several overlapping
// topics. The first Seen(id) returns false and records id; later calls return
// true until a prune removes the record. Pruning is the only retention
// mechanism: between sweeps the cache grows with traffic.
//
//	cache, err := dedup.New(10*time.Second)
//	if err != nil {
//	    return err
//	}
//	if err := cache.Start(ctx, 10*time.Second); err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	if cache.Seen(env.ID) {
//	    return // already handled via another topic
//	}
//
// Statistics are always collected. WithMetrics also exports them to
// Prometheus through metric.MetricsRegistry.
package dedup
