package model

import (
	"github.com/google/uuid"

	"main/internal/model/enum"
)

// Order is the slice of an order this module needs: lifecycle state and the
// lines to allocate against.
type Order struct {
	ID    uuid.UUID
	State enum.OrderState
	Lines []OrderLine
}

// OrderLine is one ordered position: an item and how many units of it.
type OrderLine struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Quantity int64
}

// OrderItem is a single physical unit of an order line. Fulfillment,
// cancellation and release all operate per unit.
type OrderItem struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	LineID  uuid.UUID
	ItemID  uuid.UUID
}
