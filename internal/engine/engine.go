// Package engine applies batches of stock counter changes under the locked
// read-modify-write protocol: one transaction per business event, one
// exclusive row lock per affected item, counters and ledger entries persisted
// as a unit.
package engine

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/obs"
	"main/internal/policy"
	"main/internal/store"
)

// CounterTarget selects which counter a delta applies to.
type CounterTarget uint8

const (
	TargetOnHand CounterTarget = iota
	TargetAllocated
	TargetHold
)

// CounterDelta is one signed change to one counter.
type CounterDelta struct {
	Target CounterTarget
	Delta  int64
}

// Change is one movement together with the counter effects it implies.
// Several changes against the same item in one batch are accumulated in
// memory and written once.
type Change struct {
	ItemID   uuid.UUID
	Deltas   []CounterDelta
	Movement model.Movement
}

// Engine mutates stock counters and appends to the movement ledger.
type Engine struct {
	store   store.RecordStore
	metrics *obs.Metrics
}

// New creates a mutation engine on top of a record store.
func New(recordStore store.RecordStore, metrics *obs.Metrics) *Engine {
	return &Engine{store: recordStore, metrics: metrics}
}

// Apply runs one business event's changes. Per item: acquire the exclusive
// lock, read current counters, apply the accumulated deltas, persist. All
// movements are appended in the same transaction, so either everything
// commits or nothing does. Counters move only for tracked items; movements
// are recorded either way.
//
// Returns the created movements in input order.
func (e *Engine) Apply(ctx context.Context, settings model.TenantSettings, changes []Change) ([]model.Movement, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	start := time.Now()
	accumulated := accumulate(changes)

	movements := make([]model.Movement, 0, len(changes))
	for _, c := range changes {
		movements = append(movements, c.Movement)
	}

	err := e.store.WithinTransaction(ctx, func(tx store.RecordStore) error {
		updated := make([]model.Item, 0, len(accumulated.order))
		for _, itemID := range accumulated.order {
			item, err := tx.ItemForUpdate(ctx, itemID)
			if err != nil {
				return errors.Wrap(err, "lock item")
			}
			if !policy.IsTracked(item, settings.TrackInventoryDefault) {
				continue
			}
			for _, delta := range accumulated.deltas[itemID] {
				applyDelta(&item, delta)
			}
			updated = append(updated, item)
		}
		if _, err := tx.SaveItems(ctx, updated, false); err != nil {
			return errors.Wrap(err, "save items")
		}
		if err := tx.SaveMovements(ctx, movements); err != nil {
			return errors.Wrap(err, "save movements")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveMutation(time.Since(start))
	for _, m := range movements {
		e.metrics.ObserveMovements(m.Kind, 1)
	}
	return movements, nil
}

// applyDelta mutates one counter. Allocated and hold quantities are clamped
// at zero; on-hand may go negative.
func applyDelta(item *model.Item, delta CounterDelta) {
	switch delta.Target {
	case TargetOnHand:
		item.OnHand += delta.Delta
	case TargetAllocated:
		item.Allocated = clampZero(item.Allocated + delta.Delta)
	case TargetHold:
		item.HoldQuantity = clampZero(item.HoldQuantity + delta.Delta)
	}
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

type accumulated struct {
	// order holds unique item ids sorted by byte value, so concurrent events
	// lock items in the same sequence and cannot deadlock each other.
	order  []uuid.UUID
	deltas map[uuid.UUID][]CounterDelta
}

func accumulate(changes []Change) accumulated {
	acc := accumulated{deltas: make(map[uuid.UUID][]CounterDelta, len(changes))}
	for _, c := range changes {
		if _, ok := acc.deltas[c.ItemID]; !ok {
			acc.order = append(acc.order, c.ItemID)
		}
		acc.deltas[c.ItemID] = append(acc.deltas[c.ItemID], c.Deltas...)
	}
	sort.Slice(acc.order, func(i, j int) bool {
		return bytes.Compare(acc.order[i][:], acc.order[j][:]) < 0
	})
	return acc
}
