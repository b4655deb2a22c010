package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// LedgerEvent records an immutable business fact. Rows are appended and never updated or deleted;
// Seq is the authoritative replay order and CreatedAt is informational.
type LedgerEvent struct {
	Seq        int64                  `gorm:"column:seq;primaryKey;autoIncrement"`
	EventID    uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	EntityType enums.LedgerEntityType `gorm:"column:entity_type;type:text;not null;index:idx_ledger_events_entity"`
	EntityID   uuid.UUID              `gorm:"column:entity_id;type:uuid;not null;index:idx_ledger_events_entity"`
	EventType  enums.LedgerEventType  `gorm:"column:event_type;type:text;not null"`
	ActorType  enums.LedgerActorType  `gorm:"column:actor_type;type:text;not null"`
	ActorID    *uuid.UUID             `gorm:"column:actor_id;type:uuid"`
	Payload    json.RawMessage        `gorm:"column:payload;type:jsonb"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime;index"`
}
