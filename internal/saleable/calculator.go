// Package saleable derives the purchasable quantity of an item from its
// counters, the tracking policy and the hold feature. Read-only.
package saleable

import (
	"math"

	"main/internal/model"
	"main/internal/policy"
)

// Unbounded is the saleable quantity of an untracked item: always
// purchasable.
const Unbounded = int64(math.MaxInt64)

// Quantity computes the purchasable units. May be negative; callers read a
// negative result as "not purchasable", never as an error.
func Quantity(item model.Item, settings model.TenantSettings, holdEnabled bool) int64 {
	if !policy.IsTracked(item, settings.TrackInventoryDefault) {
		return Unbounded
	}

	q := item.OnHand - item.Allocated - policy.EffectiveThreshold(item, settings.OutOfStockThreshold)
	if holdEnabled {
		q -= item.HoldQuantity
	}
	return q
}
