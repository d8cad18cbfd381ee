// Package store defines the record-store boundary of the stock ledger:
// key-addressable reads with an optional exclusive-lock mode, batched saves
// with an optional re-fetch, order-item expansion and paginated movement
// queries. Counter mutations must happen inside WithinTransaction so a saved
// movement and its counter change commit or roll back as one unit.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"main/internal/model"
	"main/internal/model/enum"
)

// ListOptions filter, sort and paginate a movement query.
type ListOptions struct {
	Kind     *enum.MovementKind
	From     *time.Time
	To       *time.Time
	SortDesc bool
	Limit    int
	Offset   int
}

// Paginated is one page of results plus the unpaginated total.
type Paginated[T any] struct {
	Items []T
	Total int64
}

// RecordStore is the persistence boundary for items and movements.
type RecordStore interface {
	// Item fetches an item by id. Returns exception.ErrItemNotFound when absent.
	Item(ctx context.Context, id uuid.UUID) (model.Item, error)

	// ItemForUpdate fetches an item under an exclusive row lock. Only
	// meaningful inside WithinTransaction; the lock is held until the
	// transaction ends.
	ItemForUpdate(ctx context.Context, id uuid.UUID) (model.Item, error)

	// SaveItems persists the given items. When refetch is true the returned
	// slice carries the post-write authoritative rows, re-read after the
	// write.
	SaveItems(ctx context.Context, items []model.Item, refetch bool) ([]model.Item, error)

	// SaveMovements appends ledger entries. Movements are immutable; there is
	// no update or delete.
	SaveMovements(ctx context.Context, movements []model.Movement) error

	// OrderItems resolves order-item ids to units with their owning line and
	// item expanded. Returns exception.ErrOrderItemNotFound if any id is
	// missing.
	OrderItems(ctx context.Context, ids []uuid.UUID) ([]model.OrderItem, error)

	// Movements lists ledger entries for one item.
	Movements(ctx context.Context, itemID uuid.UUID, opt ListOptions) (Paginated[model.Movement], error)

	// WithinTransaction runs fn against a transactional view of the store.
	// Everything fn persists commits atomically, or not at all when fn
	// returns an error.
	WithinTransaction(ctx context.Context, fn func(tx RecordStore) error) error
}

// SettingsProvider exposes tenant-wide stock defaults, read-only.
type SettingsProvider interface {
	Settings(ctx context.Context, tc model.TenantContext) (model.TenantSettings, error)
}
