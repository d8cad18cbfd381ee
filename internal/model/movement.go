package model

import (
	"time"

	"github.com/google/uuid"

	"main/internal/model/enum"
)

// Movement is one append-only ledger entry: a signed quantity change of a
// given kind, optionally linked to the order line or order item that caused
// it. Movements are never edited or deleted.
type Movement struct {
	ID       uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ItemID   uuid.UUID         `gorm:"type:uuid;index:idx_movement_item_created,priority:1;not null"`
	Kind     enum.MovementKind `gorm:"not null"`
	Quantity int64             `gorm:"not null"`

	OrderLineID *uuid.UUID `gorm:"type:uuid;index"`
	OrderItemID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_movement_item_created,priority:2"`
}

// NewMovement builds a ledger entry with a fresh identity.
func NewMovement(itemID uuid.UUID, kind enum.MovementKind, quantity int64) Movement {
	return Movement{
		ID:        uuid.New(),
		ItemID:    itemID,
		Kind:      kind,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
}

// WithOrderLine links the movement to its causing order line.
func (m Movement) WithOrderLine(lineID uuid.UUID) Movement {
	m.OrderLineID = &lineID
	return m
}

// WithOrderItem links the movement to its causing order item (a single unit).
func (m Movement) WithOrderItem(orderItemID uuid.UUID) Movement {
	m.OrderItemID = &orderItemID
	return m
}
