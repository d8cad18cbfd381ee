package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/pkg/exception"
)

// PG is the postgres-backed record store.
type PG struct {
	db *gorm.DB
}

// NewPG wraps a gorm connection as a RecordStore.
func NewPG(db *gorm.DB) *PG {
	return &PG{db: db}
}

// Migrate creates or updates the ledger tables.
func (s *PG) Migrate() error {
	return s.db.AutoMigrate(
		&model.Item{},
		&model.Movement{},
		&model.TenantSettings{},
		&orderLineRow{},
		&orderItemRow{},
	)
}

func (s *PG) Item(ctx context.Context, id uuid.UUID) (model.Item, error) {
	var item model.Item
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Item{}, errors.Wrap(exception.ErrItemNotFound, id.String())
	}
	if err != nil {
		return model.Item{}, errors.Wrap(err, "query item")
	}
	return item, nil
}

func (s *PG) ItemForUpdate(ctx context.Context, id uuid.UUID) (model.Item, error) {
	var item model.Item
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Item{}, errors.Wrap(exception.ErrItemNotFound, id.String())
	}
	if err != nil {
		return model.Item{}, errors.Wrap(err, "query item for update")
	}
	return item, nil
}

func (s *PG) SaveItems(ctx context.Context, items []model.Item, refetch bool) ([]model.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	for i := range items {
		if err := s.db.WithContext(ctx).Save(&items[i]).Error; err != nil {
			return nil, errors.Wrap(err, "save item")
		}
	}
	if !refetch {
		return items, nil
	}

	fresh := make([]model.Item, 0, len(items))
	for _, saved := range items {
		item, err := s.Item(ctx, saved.ID)
		if err != nil {
			return nil, errors.Wrap(err, "refetch item")
		}
		fresh = append(fresh, item)
	}
	return fresh, nil
}

func (s *PG) SaveMovements(ctx context.Context, movements []model.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&movements).Error; err != nil {
		return errors.Wrap(err, "append movements")
	}
	return nil
}

func (s *PG) OrderItems(ctx context.Context, ids []uuid.UUID) ([]model.OrderItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var units []orderItemRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&units).Error; err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	if len(units) != len(ids) {
		return nil, exception.ErrOrderItemNotFound
	}

	lineIDs := make([]uuid.UUID, 0, len(units))
	for _, u := range units {
		lineIDs = append(lineIDs, u.LineID)
	}
	var lines []orderLineRow
	if err := s.db.WithContext(ctx).Where("id IN ?", lineIDs).Find(&lines).Error; err != nil {
		return nil, errors.Wrap(err, "expand order lines")
	}
	lineByID := make(map[uuid.UUID]orderLineRow, len(lines))
	for _, line := range lines {
		lineByID[line.ID] = line
	}

	resolved := make([]model.OrderItem, 0, len(units))
	for _, u := range units {
		line, ok := lineByID[u.LineID]
		if !ok {
			return nil, errors.Wrap(exception.ErrOrderItemNotFound, u.ID.String())
		}
		resolved = append(resolved, model.OrderItem{
			ID:      u.ID,
			OrderID: u.OrderID,
			LineID:  u.LineID,
			ItemID:  line.ItemID,
		})
	}
	return resolved, nil
}

func (s *PG) Movements(ctx context.Context, itemID uuid.UUID, opt ListOptions) (Paginated[model.Movement], error) {
	query := s.db.WithContext(ctx).Model(&model.Movement{}).Where("item_id = ?", itemID)
	if opt.Kind != nil {
		query = query.Where("kind = ?", *opt.Kind)
	}
	if opt.From != nil {
		query = query.Where("created_at >= ?", *opt.From)
	}
	if opt.To != nil {
		query = query.Where("created_at < ?", *opt.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Paginated[model.Movement]{}, errors.Wrap(err, "count movements")
	}

	order := "created_at ASC"
	if opt.SortDesc {
		order = "created_at DESC"
	}
	query = query.Order(order)
	if opt.Limit > 0 {
		query = query.Limit(opt.Limit)
	}
	if opt.Offset > 0 {
		query = query.Offset(opt.Offset)
	}

	var movements []model.Movement
	if err := query.Find(&movements).Error; err != nil {
		return Paginated[model.Movement]{}, errors.Wrap(err, "list movements")
	}
	return Paginated[model.Movement]{Items: movements, Total: total}, nil
}

func (s *PG) WithinTransaction(ctx context.Context, fn func(tx RecordStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PG{db: tx})
	})
}

// Settings implements SettingsProvider against the tenant_settings table.
func (s *PG) Settings(ctx context.Context, tc model.TenantContext) (model.TenantSettings, error) {
	var settings model.TenantSettings
	err := s.db.WithContext(ctx).First(&settings, "tenant_id = ?", tc.TenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.TenantSettings{}, errors.Wrap(exception.ErrSettingsNotFound, tc.TenantID.String())
	}
	if err != nil {
		return model.TenantSettings{}, errors.Wrap(err, "query tenant settings")
	}
	return settings, nil
}

type orderLineRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID  uuid.UUID `gorm:"type:uuid;index;not null"`
	ItemID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Quantity int64     `gorm:"not null"`
}

func (orderLineRow) TableName() string { return "order_lines" }

type orderItemRow struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"type:uuid;index;not null"`
	LineID  uuid.UUID `gorm:"type:uuid;index;not null"`
}

func (orderItemRow) TableName() string { return "order_items" }
