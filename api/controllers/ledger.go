package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/api/responses"
	"github.com/angelmondragon/packfinderz-ledger/api/validators"
	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/pagination"
	"github.com/angelmondragon/packfinderz-ledger/pkg/types"
)

type ledgerEventResponse struct {
	Seq        int64                  `json:"seq"`
	EventID    uuid.UUID              `json:"eventId"`
	EntityType enums.LedgerEntityType `json:"entityType"`
	EntityID   uuid.UUID              `json:"entityId"`
	EventType  enums.LedgerEventType  `json:"eventType"`
	ActorType  enums.LedgerActorType  `json:"actorType"`
	ActorID    *uuid.UUID             `json:"actorId,omitempty"`
	Payload    json.RawMessage        `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

func toLedgerEventResponse(event models.LedgerEvent) ledgerEventResponse {
	return ledgerEventResponse{
		Seq:        event.Seq,
		EventID:    event.EventID,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		EventType:  event.EventType,
		ActorType:  event.ActorType,
		ActorID:    event.ActorID,
		Payload:    event.Payload,
		CreatedAt:  event.CreatedAt,
	}
}

// AdminLedgerHistory pages through the events recorded for one entity in seq order.
func AdminLedgerHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		entityType, err := enums.ParseLedgerEntityType(strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "entityType"))))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity type").
				WithDetails(map[string]any{"field": "entityType"}))
			return
		}
		entityID, err := validators.ParseUUID(chi.URLParam(r, "entityId"), "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.HistoryPage(r.Context(), entityType, entityID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]ledgerEventResponse, 0, len(page.Events))
		for _, event := range page.Events {
			out = append(out, toLedgerEventResponse(event))
		}
		responses.WritePage(w, out, types.PageMeta{Limit: limit, NextCursor: page.NextCursor})
	}
}
