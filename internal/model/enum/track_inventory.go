package enum

// TrackInventory is the per-item tracking override. The zero value inherits
// the tenant-wide default.
type TrackInventory uint8

const (
	TrackInventoryInherit TrackInventory = iota
	TrackInventoryAlways
	TrackInventoryNever
)

func (t TrackInventory) IsAvailable() bool {
	return t <= TrackInventoryNever
}

func (t TrackInventory) String() string {
	switch t {
	case TrackInventoryInherit:
		return "inherit"
	case TrackInventoryAlways:
		return "always"
	case TrackInventoryNever:
		return "never"
	default:
		return "unknown"
	}
}
