// Package holdstock manages the feature-gated temporary reservation counter.
// Holds accumulate without a cap; releases clamp at zero. Both paths
// read-modify-write under an exclusive item lock and return the post-write
// authoritative value, re-read inside the same transaction.
package holdstock

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/policy"
	"main/internal/store"
)

// Manager mutates hold quantities.
type Manager struct {
	store    store.RecordStore
	settings store.SettingsProvider
}

// New creates a hold-stock manager.
func New(recordStore store.RecordStore, settings store.SettingsProvider) *Manager {
	return &Manager{store: recordStore, settings: settings}
}

// Hold increases the item's hold quantity by qty and returns the authoritative
// hold quantity after the write. When the item is untracked nothing is
// mutated and the requested qty is returned unchanged.
func (m *Manager) Hold(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, qty int64) (int64, error) {
	return m.mutate(ctx, tc, itemID, qty, qty)
}

// Release decreases the item's hold quantity by qty, clamped at zero, and
// returns the authoritative hold quantity after the write. Untracked items
// are a no-op returning qty unchanged.
func (m *Manager) Release(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, qty int64) (int64, error) {
	return m.mutate(ctx, tc, itemID, qty, -qty)
}

func (m *Manager) mutate(ctx context.Context, tc model.TenantContext, itemID uuid.UUID, requested, delta int64) (int64, error) {
	settings, err := m.settings.Settings(ctx, tc)
	if err != nil {
		return 0, errors.Wrap(err, "resolve tenant settings")
	}

	result := requested
	err = m.store.WithinTransaction(ctx, func(tx store.RecordStore) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return errors.Wrap(err, "lock item")
		}
		if !policy.IsTracked(item, settings.TrackInventoryDefault) {
			return nil
		}

		item.HoldQuantity += delta
		if item.HoldQuantity < 0 {
			item.HoldQuantity = 0
		}

		// Forced re-read: the committed row is the value handed back, since a
		// concurrent hold may have applied before this lock was granted.
		fresh, err := tx.SaveItems(ctx, []model.Item{item}, true)
		if err != nil {
			return errors.Wrap(err, "save hold quantity")
		}
		result = fresh[0].HoldQuantity
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}
