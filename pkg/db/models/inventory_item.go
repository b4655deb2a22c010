package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks physical and reserved counts per variant. Available stock is
// OnHand - Reserved and is never stored.
type InventoryItem struct {
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;primaryKey"`
	OnHand    int64     `gorm:"column:on_hand;not null;default:0"`
	Reserved  int64     `gorm:"column:reserved;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
