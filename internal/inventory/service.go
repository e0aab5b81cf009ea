package inventory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

type ItemInput struct {
	Name        string      `json:"name"`
	Quantity    int         `json:"quantity"` // create only
	Unit        models.Unit `json:"unit"`
	MinQuantity int         `json:"min_quantity"`
}

func (in *ItemInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Invalid("name", "name is required")
	}
	if in.Unit == "" {
		in.Unit = models.UnitPiece
	}
	if !in.Unit.Valid() {
		return apperr.Invalid("unit", "unknown unit %q", in.Unit)
	}
	if in.MinQuantity < 0 {
		return apperr.Invalid("min_quantity", "min quantity cannot be negative, got %d", in.MinQuantity)
	}
	return nil
}

// ItemResponse is an item with its derived stock status.
type ItemResponse struct {
	models.InventoryItem
	Status models.StockStatus `json:"status"`
}

func NewItemResponse(it models.InventoryItem) ItemResponse {
	return ItemResponse{InventoryItem: it, Status: it.Status()}
}

type Service struct {
	store  store.Store
	ledger *Ledger
	log    *zap.Logger
}

func NewService(s store.Store, ledger *Ledger, log *zap.Logger) *Service {
	return &Service{store: s, ledger: ledger, log: log}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

func (s *Service) List(ctx context.Context, status models.StockStatus) ([]ItemResponse, error) {
	items, err := s.store.ListInventoryItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		r := NewItemResponse(it)
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*ItemResponse, error) {
	it, err := s.store.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	r := NewItemResponse(*it)
	return &r, nil
}

// Create stores a new item. A non-zero starting quantity goes through the
// ledger so the item's log accounts for its whole stock.
func (s *Service) Create(ctx context.Context, in ItemInput) (*ItemResponse, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ctx = WithOperation(ctx)

	var created models.InventoryItem
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		it := &models.InventoryItem{Name: in.Name, Unit: in.Unit, MinQuantity: in.MinQuantity}
		if err := tx.CreateInventoryItem(ctx, it); err != nil {
			return err
		}
		if in.Quantity != 0 {
			q, err := s.ledger.Bind(tx).AdjustQuantity(ctx, it.ID, in.Quantity, ReasonInitialStock, nil)
			if err != nil {
				return err
			}
			it.Quantity = q
		}
		created = *it
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityInventoryItem,
			EntityID:    it.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("inventory item %q created", it.Name),
			After:       it,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("inventory item created", zap.Uint("item_id", created.ID), zap.String("name", created.Name))
	r := NewItemResponse(created)
	return &r, nil
}

// Update changes name, unit and threshold. Quantity is ignored, use the
// adjust endpoint for that.
func (s *Service) Update(ctx context.Context, id uint, in ItemInput) (*ItemResponse, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var updated models.InventoryItem
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetInventoryItem(ctx, id)
		if err != nil {
			return err
		}
		it := &models.InventoryItem{ID: id, Name: in.Name, Unit: in.Unit, MinQuantity: in.MinQuantity}
		if err := tx.UpdateInventoryItem(ctx, it); err != nil {
			return err
		}
		updated = *it
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityInventoryItem,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("inventory item %q updated", it.Name),
			Before:      before,
			After:       it,
		})
	})
	if err != nil {
		return nil, err
	}
	r := NewItemResponse(updated)
	return &r, nil
}

// Delete fails with apperr.ErrConflict while a stage material references
// the item. Its log entries are kept.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetInventoryItem(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteInventoryItem(ctx, id); err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityInventoryItem,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("inventory item %q deleted", before.Name),
			Before:      before,
		})
	})
}

// Adjust applies a manual correction (delivery, write-off, recount).
func (s *Service) Adjust(ctx context.Context, id uint, delta int, reason string) (*ItemResponse, error) {
	if _, err := s.ledger.AdjustQuantity(WithOperation(ctx), id, delta, reason, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Logs(ctx context.Context, f store.LogFilter) ([]models.InventoryLog, error) {
	return s.store.ListInventoryLogs(ctx, f)
}

// Alerts returns the items whose status is low or critical, critical first.
func (s *Service) Alerts(ctx context.Context) ([]ItemResponse, error) {
	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var critical, low []ItemResponse
	for _, r := range all {
		switch r.Status {
		case models.StockCritical:
			critical = append(critical, r)
		case models.StockLow:
			low = append(low, r)
		}
	}
	return append(append(make([]ItemResponse, 0, len(critical)+len(low)), critical...), low...), nil
}
