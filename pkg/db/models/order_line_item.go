package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// OrderLineItem captures a purchased variant within an order.
type OrderLineItem struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID uuid.UUID            `gorm:"column:variant_id;type:uuid;not null"`
	Qty       int64                `gorm:"column:qty;not null"`
	Format    enums.LineItemFormat `gorm:"column:format;type:text;not null;default:'HARDCOPY'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
