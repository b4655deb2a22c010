package livestate

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/internal/repo"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
)

const batchSize = 500

// Store reads and rewrites the materialized tables replay reconciles.
type Store struct {
	repo.Base
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{Base: repo.NewBase(db), now: time.Now}
}

// Factory binds stores to a transaction, or to db when tx is nil.
func Factory(db *gorm.DB) replay.StoreFactory {
	base := NewStore(db)
	return func(tx *gorm.DB) replay.LiveStore {
		return &Store{Base: base.WithTx(tx), now: base.now}
	}
}

func (s *Store) LoadInventory(ctx context.Context) (map[uuid.UUID]replay.InventoryState, error) {
	out := map[uuid.UUID]replay.InventoryState{}
	var rows []models.InventoryItem
	err := s.DB(ctx).
		FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				out[row.VariantID] = replay.InventoryState{OnHand: row.OnHand, Reserved: row.Reserved}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LoadOrders(ctx context.Context) (map[uuid.UUID]replay.OrderState, error) {
	out := map[uuid.UUID]replay.OrderState{}
	var rows []models.Order
	err := s.DB(ctx).
		Select("id", "status").
		FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				out[row.ID] = replay.OrderState{Status: row.Status}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LoadShipments(ctx context.Context) (map[uuid.UUID]replay.ShipmentState, error) {
	out := map[uuid.UUID]replay.ShipmentState{}
	var rows []models.Shipment
	err := s.DB(ctx).
		FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				out[row.ID] = replay.ShipmentState{
					OrderID:  row.OrderID,
					Status:   row.Status,
					Carrier:  row.Carrier,
					Tracking: row.Tracking,
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ResetInventory(ctx context.Context) error {
	return s.DB(ctx).
		Model(&models.InventoryItem{}).
		Where("1 = 1").
		Updates(map[string]any{
			"on_hand":    0,
			"reserved":   0,
			"updated_at": s.now().UTC(),
		}).Error
}

func (s *Store) DeleteShipments(ctx context.Context) error {
	return s.DB(ctx).
		Where("1 = 1").
		Delete(&models.Shipment{}).Error
}

func (s *Store) DeleteTransitions(ctx context.Context) error {
	return s.DB(ctx).
		Where("1 = 1").
		Delete(&models.OrderStatusTransition{}).Error
}

func (s *Store) UpsertInventory(ctx context.Context, states map[uuid.UUID]replay.InventoryState) error {
	if len(states) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]models.InventoryItem, 0, len(states))
	for _, id := range sortedKeys(states) {
		state := states[id]
		rows = append(rows, models.InventoryItem{VariantID: id, OnHand: state.OnHand, Reserved: state.Reserved, UpdatedAt: now})
	}
	return s.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"on_hand", "reserved", "updated_at"}),
		}).
		CreateInBatches(rows, batchSize).Error
}

// UpsertOrders only writes status; every other order column has its own source of truth.
func (s *Store) UpsertOrders(ctx context.Context, states map[uuid.UUID]replay.OrderState) error {
	if len(states) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]models.Order, 0, len(states))
	for _, id := range sortedKeys(states) {
		rows = append(rows, models.Order{ID: id, Status: states[id].Status, CreatedAt: now, UpdatedAt: now})
	}
	return s.DB(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		CreateInBatches(rows, batchSize).Error
}

func (s *Store) UpsertShipments(ctx context.Context, states map[uuid.UUID]replay.ShipmentState) error {
	if len(states) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]models.Shipment, 0, len(states))
	for _, id := range sortedKeys(states) {
		state := states[id]
		rows = append(rows, models.Shipment{
			ID:        id,
			OrderID:   state.OrderID,
			Status:    state.Status,
			Carrier:   state.Carrier,
			Tracking:  state.Tracking,
			UpdatedAt: now,
		})
	}
	return s.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_id", "status", "carrier", "tracking", "updated_at"}),
		}).
		CreateInBatches(rows, batchSize).Error
}

// InsertTransitions skips transitions already recorded for the same ledger seq.
func (s *Store) InsertTransitions(ctx context.Context, transitions []replay.StatusTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	rows := make([]models.OrderStatusTransition, 0, len(transitions))
	for _, tr := range transitions {
		rows = append(rows, models.OrderStatusTransition{
			LedgerSeq:  tr.LedgerSeq,
			OrderID:    tr.OrderID,
			Status:     tr.Status,
			OccurredAt: tr.OccurredAt,
		})
	}
	return s.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, batchSize).Error
}

func sortedKeys[V any](m map[uuid.UUID]V) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
