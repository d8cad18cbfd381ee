package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// Mem is an in-memory record store for tests and ephemeral runs. Transactions
// serialize on one mutex, which gives the same per-item exclusivity the
// postgres row lock provides, at coarser granularity.
type Mem struct {
	mu        sync.Mutex
	items     map[uuid.UUID]model.Item
	movements []model.Movement
	lines     map[uuid.UUID]model.OrderLine
	units     map[uuid.UUID]model.OrderItem
	settings  map[uuid.UUID]model.TenantSettings

	inTx bool
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		items:    make(map[uuid.UUID]model.Item),
		lines:    make(map[uuid.UUID]model.OrderLine),
		units:    make(map[uuid.UUID]model.OrderItem),
		settings: make(map[uuid.UUID]model.TenantSettings),
	}
}

// PutItem seeds or replaces an item.
func (s *Mem) PutItem(item model.Item) {
	s.lock()
	defer s.unlock()
	s.items[item.ID] = item
}

// PutOrderLine seeds an order line for order-item expansion.
func (s *Mem) PutOrderLine(line model.OrderLine) {
	s.lock()
	defer s.unlock()
	s.lines[line.ID] = line
}

// PutOrderItem seeds a single order unit.
func (s *Mem) PutOrderItem(unit model.OrderItem) {
	s.lock()
	defer s.unlock()
	s.units[unit.ID] = unit
}

// PutSettings seeds tenant settings.
func (s *Mem) PutSettings(settings model.TenantSettings) {
	s.lock()
	defer s.unlock()
	s.settings[settings.TenantID] = settings
}

func (s *Mem) Item(ctx context.Context, id uuid.UUID) (model.Item, error) {
	s.lock()
	defer s.unlock()
	item, ok := s.items[id]
	if !ok {
		return model.Item{}, errors.Wrap(exception.ErrItemNotFound, id.String())
	}
	return item, nil
}

func (s *Mem) ItemForUpdate(ctx context.Context, id uuid.UUID) (model.Item, error) {
	return s.Item(ctx, id)
}

func (s *Mem) SaveItems(ctx context.Context, items []model.Item, refetch bool) ([]model.Item, error) {
	s.lock()
	defer s.unlock()
	saved := make([]model.Item, 0, len(items))
	for _, item := range items {
		item.UpdatedAt = time.Now().UTC()
		s.items[item.ID] = item
		saved = append(saved, item)
	}
	return saved, nil
}

func (s *Mem) SaveMovements(ctx context.Context, movements []model.Movement) error {
	s.lock()
	defer s.unlock()
	now := time.Now().UTC()
	for _, m := range movements {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		s.movements = append(s.movements, m)
	}
	return nil
}

func (s *Mem) OrderItems(ctx context.Context, ids []uuid.UUID) ([]model.OrderItem, error) {
	s.lock()
	defer s.unlock()
	resolved := make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		unit, ok := s.units[id]
		if !ok {
			return nil, errors.Wrap(exception.ErrOrderItemNotFound, id.String())
		}
		if line, ok := s.lines[unit.LineID]; ok {
			unit.ItemID = line.ItemID
			unit.OrderID = line.OrderID
		}
		resolved = append(resolved, unit)
	}
	return resolved, nil
}

func (s *Mem) Movements(ctx context.Context, itemID uuid.UUID, opt ListOptions) (Paginated[model.Movement], error) {
	s.lock()
	defer s.unlock()

	matched := make([]model.Movement, 0, len(s.movements))
	for _, m := range s.movements {
		if m.ItemID != itemID {
			continue
		}
		if opt.Kind != nil && m.Kind != *opt.Kind {
			continue
		}
		if opt.From != nil && m.CreatedAt.Before(*opt.From) {
			continue
		}
		if opt.To != nil && !m.CreatedAt.Before(*opt.To) {
			continue
		}
		matched = append(matched, m)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if opt.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if opt.Offset > 0 {
		if opt.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opt.Offset:]
		}
	}
	if opt.Limit > 0 && len(matched) > opt.Limit {
		matched = matched[:opt.Limit]
	}
	return Paginated[model.Movement]{Items: matched, Total: total}, nil
}

func (s *Mem) WithinTransaction(ctx context.Context, fn func(tx RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Run fn against a copy so a returned error leaves nothing behind.
	snapshot := s.cloneLocked()
	snapshot.inTx = true
	if err := fn(snapshot); err != nil {
		return err
	}
	s.items = snapshot.items
	s.movements = snapshot.movements
	s.lines = snapshot.lines
	s.units = snapshot.units
	s.settings = snapshot.settings
	return nil
}

func (s *Mem) Settings(ctx context.Context, tc model.TenantContext) (model.TenantSettings, error) {
	s.lock()
	defer s.unlock()
	settings, ok := s.settings[tc.TenantID]
	if !ok {
		return model.TenantSettings{}, errors.Wrap(exception.ErrSettingsNotFound, tc.TenantID.String())
	}
	return settings, nil
}

func (s *Mem) cloneLocked() *Mem {
	clone := &Mem{
		items:     make(map[uuid.UUID]model.Item, len(s.items)),
		movements: append([]model.Movement(nil), s.movements...),
		lines:     make(map[uuid.UUID]model.OrderLine, len(s.lines)),
		units:     make(map[uuid.UUID]model.OrderItem, len(s.units)),
		settings:  make(map[uuid.UUID]model.TenantSettings, len(s.settings)),
	}
	for k, v := range s.items {
		clone.items[k] = v
	}
	for k, v := range s.lines {
		clone.lines[k] = v
	}
	for k, v := range s.units {
		clone.units[k] = v
	}
	for k, v := range s.settings {
		clone.settings[k] = v
	}
	return clone
}

// lock is a no-op inside a transaction clone, which is only ever touched by
// the single goroutine running the transaction while the parent mutex is held.
func (s *Mem) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Mem) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}
