package replay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

var (
	variantX  = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	variantY  = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	orderA    = uuid.MustParse("33333333-3333-4333-8333-333333333333")
	shipmentA = uuid.MustParse("44444444-4444-4444-8444-444444444444")
	baseTime  = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
)

// stream builds ledger events with consecutive seqs one second apart.
type stream struct {
	events []models.LedgerEvent
}

func (s *stream) add(entityType enums.LedgerEntityType, id uuid.UUID, eventType enums.LedgerEventType, payload string) *stream {
	seq := int64(len(s.events) + 1)
	s.events = append(s.events, models.LedgerEvent{
		Seq:        seq,
		EventID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("event-%d", seq))),
		EntityType: entityType,
		EntityID:   id,
		EventType:  eventType,
		ActorType:  enums.LedgerActorSystem,
		Payload:    json.RawMessage(payload),
		CreatedAt:  baseTime.Add(time.Duration(seq) * time.Second),
	})
	return s
}

func (s *stream) inv(id uuid.UUID, eventType enums.LedgerEventType, qty int64) *stream {
	return s.add(enums.LedgerEntityInventory, id, eventType, fmt.Sprintf(`{"qty":%d}`, qty))
}
