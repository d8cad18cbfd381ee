package notify

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/model"
	"main/internal/obs"
	"main/pkg/exception"
)

// Dispatcher decouples the mutation path from the broker: Publish enqueues
// without blocking and a single worker drains to the sink. A full queue drops
// the batch and counts it, the engine path is never stalled by the broker.
type Dispatcher struct {
	sink    Notifier
	metrics *obs.Metrics
	ch      chan Batch
	closed  uint32
}

// NewDispatcher allocates a dispatcher with the given queue capacity.
func NewDispatcher(sink Notifier, capacity int, metrics *obs.Metrics) *Dispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	return &Dispatcher{
		sink:    sink,
		metrics: metrics,
		ch:      make(chan Batch, capacity),
	}
}

// Publish enqueues one batch without blocking.
func (d *Dispatcher) Publish(ctx context.Context, tc model.TenantContext, movements []model.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if atomic.LoadUint32(&d.closed) != 0 {
		return exception.ErrNotifyQueueClosed
	}
	select {
	case d.ch <- Batch{Tenant: tc, Movements: movements}:
		return nil
	default:
		d.metrics.IncNotifyDrop()
		return exception.ErrNotifyQueueFull
	}
}

// Close stops the dispatcher from accepting new batches.
func (d *Dispatcher) Close() {
	if atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		close(d.ch)
	}
}

// Run drains the queue until the context is done, the process is shutting
// down, or the queue is closed and empty. Publish failures are logged and
// counted; movements are already durable in the ledger by the time they reach
// the sink.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sys.Shutdown():
			return
		case batch, ok := <-d.ch:
			if !ok {
				return
			}
			if err := d.sink.Publish(ctx, batch.Tenant, batch.Movements); err != nil {
				d.metrics.IncNotifyFailed()
				logs.Errorf("publish movement batch, err: %+v", err)
				continue
			}
			d.metrics.IncNotifySent()
		}
	}
}
