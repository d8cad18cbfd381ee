// Package policy resolves whether an item's stock counters are authoritative
// and which out-of-stock threshold applies. Pure functions, no I/O.
package policy

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// IsTracked reports whether stock is tracked for the item, given the
// tenant-wide default. TrackInventoryNever always wins; the inherit state
// falls back to the tenant default.
func IsTracked(item model.Item, tenantDefault bool) bool {
	switch item.TrackInventory {
	case enum.TrackInventoryAlways:
		return true
	case enum.TrackInventoryNever:
		return false
	default:
		return tenantDefault
	}
}

// EffectiveThreshold returns the out-of-stock buffer for the item: its own
// threshold unless it opted into the tenant-wide one.
func EffectiveThreshold(item model.Item, tenantThreshold int64) int64 {
	if item.UseTenantThreshold {
		return tenantThreshold
	}
	return item.OwnThreshold
}
