package exception

import "errors"

var (
	ErrItemNotFound        = errors.New("stock: item not found")
	ErrOrderItemNotFound   = errors.New("stock: order item not found")
	ErrOrderStillActive    = errors.New("stock: order is still active")
	ErrMovementKindUnknown = errors.New("stock: unknown movement kind")
	ErrSettingsNotFound    = errors.New("stock: tenant settings not found")
)

var (
	ErrNotifyQueueFull   = errors.New("notify: queue full")
	ErrNotifyQueueClosed = errors.New("notify: queue closed")
)
