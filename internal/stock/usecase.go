// Package stock is the façade over the ledger: one method per business event.
// Every mutating event runs through the locked mutation engine and announces
// its movements with a single batched notification.
package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/holdstock"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/saleable"
	"main/internal/store"
	"main/pkg/exception"
)

// Usecase coordinates policy, engine, hold manager and notification for each
// business event.
type Usecase struct {
	store    store.RecordStore
	settings store.SettingsProvider
	engine   *engine.Engine
	holds    *holdstock.Manager
	notifier notify.Notifier
}

// NewUsecase wires the stock orchestrator.
func NewUsecase(
	recordStore store.RecordStore,
	settings store.SettingsProvider,
	eng *engine.Engine,
	holds *holdstock.Manager,
	notifier notify.Notifier,
) *Usecase {
	return &Usecase{
		store:    recordStore,
		settings: settings,
		engine:   eng,
		holds:    holds,
		notifier: notifier,
	}
}

// ListMovements returns one page of the item's ledger.
func (use *Usecase) ListMovements(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, opt store.ListOptions) (store.Paginated[model.Movement], error) {
	return use.store.Movements(ctx, itemID, opt)
}

// Adjust records a manual stock correction: onHand moves by newQty-oldQty and
// one Adjustment movement carries the raw delta. A zero delta is a no-op
// returning nil.
func (use *Usecase) Adjust(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, oldQty, newQty int64) (*model.Movement, error) {
	delta := newQty - oldQty
	if delta == 0 {
		return nil, nil
	}

	change := engine.Change{
		ItemID:   itemID,
		Deltas:   []engine.CounterDelta{{Target: engine.TargetOnHand, Delta: delta}},
		Movement: model.NewMovement(itemID, enum.MovementAdjustment, delta),
	}
	movements, err := use.apply(ctx, tc, []engine.Change{change})
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

// AllocateForOrder reserves stock for every line of a confirmed order:
// allocated grows by the line quantity and, when the hold feature is on, the
// hold reservation converts by shrinking hold quantity (clamped at zero).
// Fails with ErrOrderStillActive when the order has not left checkout.
func (use *Usecase) AllocateForOrder(ctx context.Context, tc model.TenantContext, order model.Order) ([]model.Movement, error) {
	if order.State.Active() {
		return nil, errors.Wrap(exception.ErrOrderStillActive, order.ID.String())
	}

	changes := make([]engine.Change, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Quantity <= 0 {
			continue
		}
		deltas := []engine.CounterDelta{{Target: engine.TargetAllocated, Delta: line.Quantity}}
		if tc.HoldStockEnabled {
			deltas = append(deltas, engine.CounterDelta{Target: engine.TargetHold, Delta: -line.Quantity})
		}
		changes = append(changes, engine.Change{
			ItemID:   line.ItemID,
			Deltas:   deltas,
			Movement: model.NewMovement(line.ItemID, enum.MovementAllocation, line.Quantity).WithOrderLine(line.ID),
		})
	}
	return use.apply(ctx, tc, changes)
}

// SellForOrder records fulfillment of the given order units: units are
// resolved and grouped by their originating line, then each line's item loses
// the unit count from onHand and from allocated (clamped at zero), with one
// Sale movement per line.
func (use *Usecase) SellForOrder(ctx context.Context, tc model.TenantContext, orderItemIDs []uuid.UUID) ([]model.Movement, error) {
	groups, err := use.groupUnitsByLine(ctx, orderItemIDs)
	if err != nil {
		return nil, err
	}

	changes := make([]engine.Change, 0, len(groups))
	for _, g := range groups {
		n := int64(len(g.units))
		changes = append(changes, engine.Change{
			ItemID: g.itemID,
			Deltas: []engine.CounterDelta{
				{Target: engine.TargetOnHand, Delta: -n},
				{Target: engine.TargetAllocated, Delta: -n},
			},
			Movement: model.NewMovement(g.itemID, enum.MovementSale, -n).WithOrderLine(g.lineID),
		})
	}
	return use.apply(ctx, tc, changes)
}

// CancelOrderItems restores one on-hand unit per cancelled order item, with
// one Cancellation movement per unit linked to its originating item.
func (use *Usecase) CancelOrderItems(ctx context.Context, tc model.TenantContext, orderItemIDs []uuid.UUID) ([]model.Movement, error) {
	units, err := use.store.OrderItems(ctx, orderItemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve order items")
	}

	changes := make([]engine.Change, 0, len(units))
	for _, unit := range units {
		changes = append(changes, engine.Change{
			ItemID:   unit.ItemID,
			Deltas:   []engine.CounterDelta{{Target: engine.TargetOnHand, Delta: 1}},
			Movement: model.NewMovement(unit.ItemID, enum.MovementCancellation, 1).WithOrderItem(unit.ID),
		})
	}
	return use.apply(ctx, tc, changes)
}

// ReleaseOrderItems frees one allocated unit per released order item, clamped
// at zero, with one Release movement per unit.
func (use *Usecase) ReleaseOrderItems(ctx context.Context, tc model.TenantContext, orderItemIDs []uuid.UUID) ([]model.Movement, error) {
	units, err := use.store.OrderItems(ctx, orderItemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve order items")
	}

	changes := make([]engine.Change, 0, len(units))
	for _, unit := range units {
		changes = append(changes, engine.Change{
			ItemID:   unit.ItemID,
			Deltas:   []engine.CounterDelta{{Target: engine.TargetAllocated, Delta: -1}},
			Movement: model.NewMovement(unit.ItemID, enum.MovementRelease, -1).WithOrderItem(unit.ID),
		})
	}
	return use.apply(ctx, tc, changes)
}

// SaleableQuantity derives the purchasable units for the item under the
// tenant's settings and the channel's hold feature flag.
func (use *Usecase) SaleableQuantity(ctx context.Context, tc model.TenantContext, item model.Item) (int64, error) {
	settings, err := use.settings.Settings(ctx, tc)
	if err != nil {
		return 0, errors.Wrap(err, "resolve tenant settings")
	}
	return saleable.Quantity(item, settings, tc.HoldStockEnabled), nil
}

// LockItemForUpdate fetches a consistent snapshot of the item under an
// exclusive lock. The lock is scoped to the internal read; the returned value
// is the row as of that locked read. Fails with ErrItemNotFound when absent.
func (use *Usecase) LockItemForUpdate(ctx context.Context, tc model.TenantContext, itemID uuid.UUID) (model.Item, error) {
	var item model.Item
	err := use.store.WithinTransaction(ctx, func(tx store.RecordStore) error {
		var err error
		item, err = tx.ItemForUpdate(ctx, itemID)
		return err
	})
	if err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// Hold places a temporary reservation outside the allocation ledger.
func (use *Usecase) Hold(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, qty int64) (int64, error) {
	return use.holds.Hold(ctx, tc, itemID, qty)
}

// Release frees a temporary reservation, clamped at zero.
func (use *Usecase) Release(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, qty int64) (int64, error) {
	return use.holds.Release(ctx, tc, itemID, qty)
}

// apply resolves tenant settings once, runs the engine, and emits a single
// notification carrying the whole batch. Notification is fire-and-forget:
// the movements are durable before it is attempted, so a failed publish is
// logged and counted, never surfaced.
func (use *Usecase) apply(ctx context.Context, tc model.TenantContext, changes []engine.Change) ([]model.Movement, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	settings, err := use.settings.Settings(ctx, tc)
	if err != nil {
		return nil, errors.Wrap(err, "resolve tenant settings")
	}

	movements, err := use.engine.Apply(ctx, settings, changes)
	if err != nil {
		return nil, err
	}

	if err := use.notifier.Publish(ctx, tc, movements); err != nil {
		logs.Warnf("notify movement batch, err: %+v", err)
	}
	return movements, nil
}

type lineGroup struct {
	lineID uuid.UUID
	itemID uuid.UUID
	units  []model.OrderItem
}

// groupUnitsByLine resolves order units and buckets them by originating line,
// preserving first-seen line order.
func (use *Usecase) groupUnitsByLine(ctx context.Context, orderItemIDs []uuid.UUID) ([]lineGroup, error) {
	units, err := use.store.OrderItems(ctx, orderItemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve order items")
	}

	index := make(map[uuid.UUID]int, len(units))
	groups := make([]lineGroup, 0, len(units))
	for _, unit := range units {
		i, ok := index[unit.LineID]
		if !ok {
			i = len(groups)
			index[unit.LineID] = i
			groups = append(groups, lineGroup{lineID: unit.LineID, itemID: unit.ItemID})
		}
		groups[i].units = append(groups[i].units, unit)
	}
	return groups, nil
}
