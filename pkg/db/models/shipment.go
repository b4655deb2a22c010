package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// Shipment is wholly derived from the ledger; rebuilds delete and recreate it.
type Shipment struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	Carrier   *string              `gorm:"column:carrier"`
	Tracking  *string              `gorm:"column:tracking"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
