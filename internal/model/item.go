package model

import (
	"time"

	"github.com/google/uuid"

	"main/internal/model/enum"
)

// Item is one sellable variant's stock record. The ledger mutates only the
// counters; identity and catalog fields are owned elsewhere.
type Item struct {
	ID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	SKU string    `gorm:"size:64;uniqueIndex;not null"`

	// OnHand may go negative transiently (oversold physical stock).
	OnHand int64 `gorm:"not null"`
	// Allocated is clamped at zero on every mutation.
	Allocated int64 `gorm:"not null"`
	// HoldQuantity is the feature-gated temporary reservation counter,
	// independent of Allocated.
	HoldQuantity int64 `gorm:"not null"`

	TrackInventory     enum.TrackInventory `gorm:"not null;default:0"`
	UseTenantThreshold bool                `gorm:"not null;default:true"`
	OwnThreshold       int64               `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TenantSettings are tenant-wide stock defaults, read-only to this module.
type TenantSettings struct {
	TenantID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TrackInventoryDefault bool      `gorm:"not null"`
	OutOfStockThreshold   int64     `gorm:"not null"`
}

// TenantContext carries the acting tenant and channel identity. HoldStockEnabled
// is resolved once per request by the caller instead of being looked up from a
// generic attribute bag on every read.
type TenantContext struct {
	TenantID         uuid.UUID
	ChannelID        uuid.UUID
	HoldStockEnabled bool
}
