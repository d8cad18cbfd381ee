package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/store"
	"main/pkg/exception"
)

func trackedSettings() model.TenantSettings {
	return model.TenantSettings{TrackInventoryDefault: true}
}

func seedItem(mem *store.Mem, onHand, allocated int64) model.Item {
	item := model.Item{
		ID:             uuid.New(),
		SKU:            "SKU-" + uuid.NewString()[:8],
		OnHand:         onHand,
		Allocated:      allocated,
		TrackInventory: enum.TrackInventoryInherit,
	}
	mem.PutItem(item)
	return item
}

func TestApplyAllocationIsAdditiveNotIdempotent(t *testing.T) {
	mem := store.NewMem()
	item := seedItem(mem, 10, 0)
	eng := New(mem, obs.NewMetrics())

	change := Change{
		ItemID:   item.ID,
		Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 3}},
		Movement: model.NewMovement(item.ID, enum.MovementAllocation, 3),
	}

	movements, err := eng.Apply(t.Context(), trackedSettings(), []Change{change})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, enum.MovementAllocation, movements[0].Kind)
	assert.Equal(t, int64(3), movements[0].Quantity)

	// Repeating the same change allocates again; movements are additive.
	change.Movement = model.NewMovement(item.ID, enum.MovementAllocation, 3)
	_, err = eng.Apply(t.Context(), trackedSettings(), []Change{change})
	require.NoError(t, err)

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Allocated)
}

func TestApplyAccumulatesRepeatedItemDeltas(t *testing.T) {
	mem := store.NewMem()
	item := seedItem(mem, 10, 0)
	eng := New(mem, nil)

	changes := []Change{
		{
			ItemID:   item.ID,
			Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 2}},
			Movement: model.NewMovement(item.ID, enum.MovementAllocation, 2),
		},
		{
			ItemID:   item.ID,
			Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 5}},
			Movement: model.NewMovement(item.ID, enum.MovementAllocation, 5),
		},
	}

	movements, err := eng.Apply(t.Context(), trackedSettings(), changes)
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Allocated)
}

func TestApplyClampsAllocatedAtZero(t *testing.T) {
	mem := store.NewMem()
	item := seedItem(mem, 10, 2)
	eng := New(mem, nil)

	changes := []Change{{
		ItemID: item.ID,
		Deltas: []CounterDelta{
			{Target: TargetOnHand, Delta: -5},
			{Target: TargetAllocated, Delta: -5},
		},
		Movement: model.NewMovement(item.ID, enum.MovementSale, -5),
	}}

	_, err := eng.Apply(t.Context(), trackedSettings(), changes)
	require.NoError(t, err)

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.OnHand, "on-hand may go negative but follows the full delta")
	assert.Equal(t, int64(0), got.Allocated, "allocated clamps at zero")
}

func TestApplyUntrackedItemRecordsMovementOnly(t *testing.T) {
	mem := store.NewMem()
	item := model.Item{
		ID:             uuid.New(),
		SKU:            "SKU-untracked",
		OnHand:         4,
		TrackInventory: enum.TrackInventoryNever,
	}
	mem.PutItem(item)
	eng := New(mem, nil)

	changes := []Change{{
		ItemID:   item.ID,
		Deltas:   []CounterDelta{{Target: TargetOnHand, Delta: -4}},
		Movement: model.NewMovement(item.ID, enum.MovementSale, -4),
	}}

	movements, err := eng.Apply(t.Context(), trackedSettings(), changes)
	require.NoError(t, err)
	require.Len(t, movements, 1)

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.OnHand, "untracked counters never move")

	listed, err := mem.Movements(t.Context(), item.ID, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), listed.Total, "movement recorded regardless of tracking")
}

func TestApplyMissingItemAbortsWholeBatch(t *testing.T) {
	mem := store.NewMem()
	item := seedItem(mem, 10, 0)
	eng := New(mem, nil)

	changes := []Change{
		{
			ItemID:   item.ID,
			Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 1}},
			Movement: model.NewMovement(item.ID, enum.MovementAllocation, 1),
		},
		{
			ItemID:   uuid.New(),
			Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 1}},
			Movement: model.NewMovement(uuid.New(), enum.MovementAllocation, 1),
		},
	}

	_, err := eng.Apply(t.Context(), trackedSettings(), changes)
	require.ErrorIs(t, err, exception.ErrItemNotFound)

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Allocated, "no partial state for the found item")

	listed, err := mem.Movements(t.Context(), item.ID, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), listed.Total, "no movements persisted on abort")
}

func TestApplyConcurrentAllocationsSerialize(t *testing.T) {
	mem := store.NewMem()
	item := seedItem(mem, 1000, 0)
	eng := New(mem, obs.NewMetrics())

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				_, err := eng.Apply(t.Context(), trackedSettings(), []Change{{
					ItemID:   item.ID,
					Deltas:   []CounterDelta{{Target: TargetAllocated, Delta: 1}},
					Movement: model.NewMovement(item.ID, enum.MovementAllocation, 1),
				}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := mem.Item(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), got.Allocated, "no lost updates under concurrency")

	listed, err := mem.Movements(t.Context(), item.ID, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), listed.Total)
}
