package enum

// MovementKind describes what a stock movement did to an item's counters.
type MovementKind uint8

const (
	_movement_kind_beg MovementKind = iota
	MovementAdjustment
	MovementAllocation
	MovementSale
	MovementCancellation
	MovementRelease
	_movement_kind_end
)

func (k MovementKind) IsAvailable() bool {
	return k > _movement_kind_beg && k < _movement_kind_end
}

func (k MovementKind) String() string {
	switch k {
	case MovementAdjustment:
		return "adjustment"
	case MovementAllocation:
		return "allocation"
	case MovementSale:
		return "sale"
	case MovementCancellation:
		return "cancellation"
	case MovementRelease:
		return "release"
	default:
		return "unknown"
	}
}
