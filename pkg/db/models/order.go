package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// Order is the live order row. Status mirrors the ledger-derived payment status.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	PaymentInitiatedAt *time.Time        `gorm:"column:payment_initiated_at"`
	ExpiredAt          *time.Time        `gorm:"column:expired_at"`
	Items              []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
