package db

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	systemName    = "sqlite"
	latencyWindow = 256
)

// LatencyRecorder receives every store operation timing. observability.Metrics satisfies it.
type LatencyRecorder interface {
	ObserveStoreOperation(system, collection, operation string, elapsed time.Duration, err error)
}

// OperationKey identifies one store operation against one collection.
type OperationKey struct {
	Collection string
	Operation  string
}

// OperationLatency summarises the recent window of one operation.
type OperationLatency struct {
	OperationKey
	Count  int
	Errors int
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

// latencyRing holds the last latencyWindow samples of one operation.
type latencyRing struct {
	samples [latencyWindow]time.Duration
	failed  [latencyWindow]bool
	next    int
	filled  int
}

func (r *latencyRing) add(elapsed time.Duration, failed bool) {
	r.samples[r.next] = elapsed
	r.failed[r.next] = failed
	r.next = (r.next + 1) % latencyWindow
	if r.filled < latencyWindow {
		r.filled++
	}
}

func (r *latencyRing) summary(key OperationKey) OperationLatency {
	sorted := slices.Clone(r.samples[:r.filled])
	slices.Sort(sorted)
	errs := 0
	for _, failed := range r.failed[:r.filled] {
		if failed {
			errs++
		}
	}
	return OperationLatency{
		OperationKey: key,
		Count:        r.filled,
		Errors:       errs,
		P50:          percentile(sorted, 50),
		P95:          percentile(sorted, 95),
		Max:          sorted[len(sorted)-1],
	}
}

// percentile uses the nearest-rank method on ascending samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	return sorted[max(rank-1, 0)]
}

type operationLatencies struct {
	mu       sync.Mutex
	rings    map[OperationKey]*latencyRing
	recorder LatencyRecorder
}

func newOperationLatencies() *operationLatencies {
	return &operationLatencies{rings: make(map[OperationKey]*latencyRing)}
}

// SetLatencyRecorder also forwards every observed operation to recorder.
func (c *Database) SetLatencyRecorder(recorder LatencyRecorder) {
	c.latency.mu.Lock()
	defer c.latency.mu.Unlock()
	c.latency.recorder = recorder
}

// ObserveOperation records one store operation against collection.
func (c *Database) ObserveOperation(collection, operation string, elapsed time.Duration, err error) {
	key := OperationKey{Collection: collection, Operation: operation}

	c.latency.mu.Lock()
	ring, ok := c.latency.rings[key]
	if !ok {
		ring = &latencyRing{}
		c.latency.rings[key] = ring
	}
	ring.add(elapsed, err != nil)
	recorder := c.latency.recorder
	c.latency.mu.Unlock()

	if recorder != nil {
		recorder.ObserveStoreOperation(systemName, collection, operation, elapsed, err)
	}
}

// OperationLatencies returns one summary per observed operation, slowest p95 first.
func (c *Database) OperationLatencies() []OperationLatency {
	if c == nil || c.latency == nil {
		return nil
	}
	c.latency.mu.Lock()
	stats := make([]OperationLatency, 0, len(c.latency.rings))
	for key, ring := range c.latency.rings {
		stats = append(stats, ring.summary(key))
	}
	c.latency.mu.Unlock()

	slices.SortFunc(stats, func(a, b OperationLatency) int {
		if byP95 := cmp.Compare(b.P95, a.P95); byP95 != 0 {
			return byP95
		}
		if byCollection := cmp.Compare(a.Collection, b.Collection); byCollection != 0 {
			return byCollection
		}
		return cmp.Compare(a.Operation, b.Operation)
	})
	return stats
}

// LogLatencyStats logs the five slowest operations every interval until ctx is done.
func (c *Database) LogLatencyStats(ctx context.Context, log *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats := c.OperationLatencies()
		for _, entry := range stats[:min(len(stats), 5)] {
			log.Info("store_operation_latency",
				"collection", entry.Collection,
				"operation", entry.Operation,
				"count", entry.Count,
				"errors", entry.Errors,
				"p50_ms", entry.P50.Milliseconds(),
				"p95_ms", entry.P95.Milliseconds(),
				"max_ms", entry.Max.Milliseconds(),
			)
		}
	}
}
