package ledger

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/pagination"
)

// Service defines operations that record and inspect ledger events.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.LedgerEvent, error)
	HistoryPage(ctx context.Context, entityType enums.LedgerEntityType, entityID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

// HistoryPage is one cursor page of an entity's events. NextCursor is empty on the last page.
type HistoryPage struct {
	Events     []models.LedgerEvent
	NextCursor string
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordInput captures the immutable data a ledger event requires. Payload may be one of the
// Payload variants, a json.RawMessage, or nil for events without data.
type RecordInput struct {
	EntityType enums.LedgerEntityType `json:"entity_type"`
	EntityID   uuid.UUID              `json:"entity_id"`
	EventType  enums.LedgerEventType  `json:"event_type"`
	ActorType  enums.LedgerActorType  `json:"actor_type"`
	ActorID    *uuid.UUID             `json:"actor_id,omitempty"`
	Payload    any                    `json:"payload,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// Record validates and appends one event. Unknown event types are rejected here even though
// replay tolerates them, so new vocabulary must be taught to the writer first.
func (s *service) Record(ctx context.Context, input RecordInput) (*models.LedgerEvent, error) {
	if !input.EntityType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entity type %q", input.EntityType))
	}
	if input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id is required")
	}
	if !input.EventType.RecognizedFor(input.EntityType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("event type %q is not recognized for %s", input.EventType, input.EntityType))
	}
	if !input.ActorType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid actor type %q", input.ActorType))
	}

	raw, err := encodePayload(input.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode ledger payload")
	}
	if _, err := Decode(input.EntityType, input.EventType, raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger payload").
			WithDetails(map[string]any{"entity_type": input.EntityType, "event_type": input.EventType})
	}

	event := &models.LedgerEvent{
		EventID:    uuid.New(),
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		EventType:  input.EventType,
		ActorType:  input.ActorType,
		ActorID:    input.ActorID,
		Payload:    raw,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Append(ctx, event); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger event already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
	}
	return event, nil
}

func (s *service) HistoryPage(ctx context.Context, entityType enums.LedgerEntityType, entityID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if err := validateEntity(entityType, entityID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	limit := pagination.NormalizeLimit(params.Limit)
	events, err := s.repo.ListByEntity(ctx, entityType, entityID, cursor.AfterSeq, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
	}

	page := &HistoryPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{AfterSeq: page.Events[limit-1].Seq})
	}
	return page, nil
}

func validateEntity(entityType enums.LedgerEntityType, entityID uuid.UUID) error {
	if !entityType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entity type %q", entityType))
	}
	if entityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entity id is required")
	}
	return nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, stdErrors.New("payload is not valid json")
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}
