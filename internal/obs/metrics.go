package obs

import (
	"sync/atomic"
	"time"

	"main/internal/model/enum"
)

const maxMovementKind = int(enum.MovementRelease)

// Metrics collects lightweight counters and latency stats for the mutation
// engine and the notification path.
type Metrics struct {
	movementCounts [maxMovementKind + 1]uint64
	notifyDrops    uint64
	notifySent     uint64
	notifyFailed   uint64

	mutationLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	MovementCounts  map[enum.MovementKind]uint64
	NotifyDrops     uint64
	NotifySent      uint64
	NotifyFailed    uint64
	MutationLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveMovements counts created ledger entries by kind.
func (m *Metrics) ObserveMovements(kind enum.MovementKind, n int) {
	if m == nil || n <= 0 {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.movementCounts) {
		atomic.AddUint64(&m.movementCounts[idx], uint64(n))
	}
}

// ObserveMutation measures one locked mutation transaction.
func (m *Metrics) ObserveMutation(d time.Duration) {
	if m == nil {
		return
	}
	m.mutationLatency.Observe(d)
}

// IncNotifyDrop records a dropped notification batch.
func (m *Metrics) IncNotifyDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.notifyDrops, 1)
}

// IncNotifySent records a delivered notification batch.
func (m *Metrics) IncNotifySent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.notifySent, 1)
}

// IncNotifyFailed records a failed notification publish.
func (m *Metrics) IncNotifyFailed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.notifyFailed, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	movementCounts := make(map[enum.MovementKind]uint64)
	for i := range m.movementCounts {
		if v := atomic.LoadUint64(&m.movementCounts[i]); v > 0 {
			movementCounts[enum.MovementKind(i)] = v
		}
	}
	return Snapshot{
		MovementCounts:  movementCounts,
		NotifyDrops:     atomic.LoadUint64(&m.notifyDrops),
		NotifySent:      atomic.LoadUint64(&m.notifySent),
		NotifyFailed:    atomic.LoadUint64(&m.notifyFailed),
		MutationLatency: m.mutationLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
