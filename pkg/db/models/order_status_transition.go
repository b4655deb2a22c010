package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// OrderStatusTransition is one step of an order's status history. It is keyed by the ledger
// event that caused it and rewritten from the ledger on rebuild.
type OrderStatusTransition struct {
	LedgerSeq  int64             `gorm:"column:ledger_seq;primaryKey;autoIncrement:false"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status     enums.OrderStatus `gorm:"column:status;type:text;not null"`
	OccurredAt time.Time         `gorm:"column:occurred_at;not null"`
}
