package enum

// OrderState tracks the order lifecycle as far as stock processing cares:
// allocations are only valid once checkout has completed.
type OrderState uint8

const (
	OrderStateUnknown OrderState = iota
	OrderStateDraft
	OrderStatePlaced
	OrderStateFulfilled
	OrderStateCancelled
)

// Active reports whether the order is still in checkout. Unknown counts as
// active so an unset state can never pass the allocation precondition.
func (s OrderState) Active() bool {
	return s == OrderStateUnknown || s == OrderStateDraft
}

func (s OrderState) String() string {
	switch s {
	case OrderStateDraft:
		return "draft"
	case OrderStatePlaced:
		return "placed"
	case OrderStateFulfilled:
		return "fulfilled"
	case OrderStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
