package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/engine"
	"main/internal/holdstock"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/saleable"
	"main/internal/store"
	"main/pkg/exception"
)

type captureNotifier struct {
	mu      sync.Mutex
	batches []notify.Batch
}

func (c *captureNotifier) Publish(_ context.Context, tc model.TenantContext, movements []model.Movement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, notify.Batch{Tenant: tc, Movements: movements})
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

type fixture struct {
	use      *Usecase
	mem      *store.Mem
	notifier *captureNotifier
	tc       model.TenantContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMem()
	tc := model.TenantContext{TenantID: uuid.New(), ChannelID: uuid.New()}
	mem.PutSettings(model.TenantSettings{TenantID: tc.TenantID, TrackInventoryDefault: true})

	notifier := &captureNotifier{}
	eng := engine.New(mem, obs.NewMetrics())
	holds := holdstock.New(mem, mem)
	return &fixture{
		use:      NewUsecase(mem, mem, eng, holds, notifier),
		mem:      mem,
		notifier: notifier,
		tc:       tc,
	}
}

func (f *fixture) seedItem(t *testing.T, onHand, allocated int64) model.Item {
	t.Helper()
	item := model.Item{
		ID:                 uuid.New(),
		SKU:                "SKU-" + uuid.NewString()[:8],
		OnHand:             onHand,
		Allocated:          allocated,
		UseTenantThreshold: true,
	}
	f.mem.PutItem(item)
	return item
}

// seedOrder creates a placed order with one line of qty units and one order
// item per unit, returning the order and the unit ids.
func (f *fixture) seedOrder(t *testing.T, item model.Item, qty int) (model.Order, []uuid.UUID) {
	t.Helper()
	order := model.Order{ID: uuid.New(), State: enum.OrderStatePlaced}
	line := model.OrderLine{ID: uuid.New(), OrderID: order.ID, ItemID: item.ID, Quantity: int64(qty)}
	order.Lines = []model.OrderLine{line}
	f.mem.PutOrderLine(line)

	unitIDs := make([]uuid.UUID, 0, qty)
	for range qty {
		unit := model.OrderItem{ID: uuid.New(), OrderID: order.ID, LineID: line.ID, ItemID: item.ID}
		f.mem.PutOrderItem(unit)
		unitIDs = append(unitIDs, unit.ID)
	}
	return order, unitIDs
}

func (f *fixture) item(t *testing.T, id uuid.UUID) model.Item {
	t.Helper()
	item, err := f.mem.Item(t.Context(), id)
	require.NoError(t, err)
	return item
}

func TestAdjust(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 0)

	movement, err := f.use.Adjust(t.Context(), f.tc, item.ID, 10, 14)
	require.NoError(t, err)
	require.NotNil(t, movement)
	assert.Equal(t, enum.MovementAdjustment, movement.Kind)
	assert.Equal(t, int64(4), movement.Quantity)
	assert.Equal(t, int64(14), f.item(t, item.ID).OnHand)
	assert.Equal(t, 1, f.notifier.count())
}

func TestAdjustZeroDeltaIsNoOp(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 0)

	movement, err := f.use.Adjust(t.Context(), f.tc, item.ID, 10, 10)
	require.NoError(t, err)
	assert.Nil(t, movement)
	assert.Equal(t, 0, f.notifier.count(), "no movement means no notification")
}

func TestAdjustNegativeDeltaMayDriveOnHandNegative(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 2, 0)

	movement, err := f.use.Adjust(t.Context(), f.tc, item.ID, 2, -3)
	require.NoError(t, err)
	require.NotNil(t, movement)
	assert.Equal(t, int64(-5), movement.Quantity)
	assert.Equal(t, int64(-3), f.item(t, item.ID).OnHand)
}

func TestAllocateForOrder(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 2)
	order, _ := f.seedOrder(t, item, 3)

	movements, err := f.use.AllocateForOrder(t.Context(), f.tc, order)
	require.NoError(t, err)
	require.Len(t, movements, 1, "one Allocation movement per line")
	assert.Equal(t, enum.MovementAllocation, movements[0].Kind)
	assert.Equal(t, int64(3), movements[0].Quantity)
	require.NotNil(t, movements[0].OrderLineID)
	assert.Equal(t, order.Lines[0].ID, *movements[0].OrderLineID)

	assert.Equal(t, int64(5), f.item(t, item.ID).Allocated)
	assert.Equal(t, 1, f.notifier.count(), "one batched notification per event")
}

func TestAllocateForOrderRequiresInactiveOrder(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 0)
	order, _ := f.seedOrder(t, item, 3)
	order.State = enum.OrderStateDraft

	_, err := f.use.AllocateForOrder(t.Context(), f.tc, order)
	require.ErrorIs(t, err, exception.ErrOrderStillActive)
	assert.Equal(t, int64(0), f.item(t, item.ID).Allocated, "no partial persistence on precondition failure")
	assert.Equal(t, 0, f.notifier.count())
}

func TestAllocateConvertsHoldWhenEnabled(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 0)
	item.HoldQuantity = 2
	f.mem.PutItem(item)
	order, _ := f.seedOrder(t, item, 3)

	tc := f.tc
	tc.HoldStockEnabled = true
	_, err := f.use.AllocateForOrder(t.Context(), tc, order)
	require.NoError(t, err)

	got := f.item(t, item.ID)
	assert.Equal(t, int64(3), got.Allocated)
	assert.Equal(t, int64(0), got.HoldQuantity, "hold decrement clamps at zero")
}

func TestSellForOrderGroupsUnitsByLine(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 5)
	_, unitIDs := f.seedOrder(t, item, 3)

	movements, err := f.use.SellForOrder(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)
	require.Len(t, movements, 1, "units of one line collapse into one Sale movement")
	assert.Equal(t, enum.MovementSale, movements[0].Kind)
	assert.Equal(t, int64(-3), movements[0].Quantity)

	got := f.item(t, item.ID)
	assert.Equal(t, int64(7), got.OnHand)
	assert.Equal(t, int64(2), got.Allocated)
	assert.Equal(t, 1, f.notifier.count())
}

func TestSellForOrderClampsAllocated(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 1)
	_, unitIDs := f.seedOrder(t, item, 3)

	_, err := f.use.SellForOrder(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)

	got := f.item(t, item.ID)
	assert.Equal(t, int64(7), got.OnHand, "on-hand decreases by the full unit count")
	assert.Equal(t, int64(0), got.Allocated, "allocated decreases by min(n, allocated)")
}

func TestCancelOrderItemsOneMovementPerUnit(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 7, 0)
	_, unitIDs := f.seedOrder(t, item, 2)

	movements, err := f.use.CancelOrderItems(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, enum.MovementCancellation, m.Kind)
		assert.Equal(t, int64(1), m.Quantity)
		assert.NotNil(t, m.OrderItemID)
	}
	assert.Equal(t, int64(9), f.item(t, item.ID).OnHand)
	assert.Equal(t, 1, f.notifier.count(), "units share one notification")
}

func TestReleaseOrderItemsClampsAtZero(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 1)
	_, unitIDs := f.seedOrder(t, item, 2)

	movements, err := f.use.ReleaseOrderItems(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, enum.MovementRelease, movements[0].Kind)
	assert.Equal(t, int64(-1), movements[0].Quantity)

	assert.Equal(t, int64(0), f.item(t, item.ID).Allocated)
}

func TestSaleableQuantity(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 2)

	q, err := f.use.SaleableQuantity(t.Context(), f.tc, item)
	require.NoError(t, err)
	assert.Equal(t, int64(8), q)

	item.TrackInventory = enum.TrackInventoryNever
	q, err = f.use.SaleableQuantity(t.Context(), f.tc, item)
	require.NoError(t, err)
	assert.Equal(t, saleable.Unbounded, q)
}

func TestLockItemForUpdate(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 3, 1)

	got, err := f.use.LockItemForUpdate(t.Context(), f.tc, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, int64(3), got.OnHand)

	_, err = f.use.LockItemForUpdate(t.Context(), f.tc, uuid.New())
	require.ErrorIs(t, err, exception.ErrItemNotFound)
}

func TestListMovementsFilterAndPaginate(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 100, 0)
	order, unitIDs := f.seedOrder(t, item, 2)

	_, err := f.use.Adjust(t.Context(), f.tc, item.ID, 100, 105)
	require.NoError(t, err)
	_, err = f.use.AllocateForOrder(t.Context(), f.tc, order)
	require.NoError(t, err)
	_, err = f.use.SellForOrder(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)

	page, err := f.use.ListMovements(t.Context(), f.tc, item.ID, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	kind := enum.MovementSale
	page, err = f.use.ListMovements(t.Context(), f.tc, item.ID, store.ListOptions{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, int64(-2), page.Items[0].Quantity)

	page, err = f.use.ListMovements(t.Context(), f.tc, item.ID, store.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Total, "total counts beyond the page")
}

// Worked example: 10 on hand, 2 allocated, threshold 0, hold disabled.
func TestOrderLifecycleFlow(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, 2)

	q, err := f.use.SaleableQuantity(t.Context(), f.tc, item)
	require.NoError(t, err)
	assert.Equal(t, int64(8), q)

	order, unitIDs := f.seedOrder(t, item, 3)
	_, err = f.use.AllocateForOrder(t.Context(), f.tc, order)
	require.NoError(t, err)
	got := f.item(t, item.ID)
	assert.Equal(t, int64(5), got.Allocated)

	q, err = f.use.SaleableQuantity(t.Context(), f.tc, got)
	require.NoError(t, err)
	assert.Equal(t, int64(5), q)

	_, err = f.use.SellForOrder(t.Context(), f.tc, unitIDs)
	require.NoError(t, err)
	got = f.item(t, item.ID)
	assert.Equal(t, int64(7), got.OnHand)
	assert.Equal(t, int64(2), got.Allocated)

	_, err = f.use.CancelOrderItems(t.Context(), f.tc, unitIDs[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(8), f.item(t, item.ID).OnHand)

	assert.Equal(t, 3, f.notifier.count(), "three events, three notifications")
}
