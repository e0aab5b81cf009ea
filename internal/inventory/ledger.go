// Package inventory owns item quantities. Every quantity change goes through
// the Ledger, which applies the delta and appends the matching log entry in
// one transaction.
package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/pricing"
	"routesheet-backend/internal/store"
)

const (
	ReasonInitialStock      = "initial stock"
	ReasonLinkRemoved       = "returned on link removal"
	ReasonRouteSheetDeleted = "returned on route sheet deletion"
	ReasonStockCount        = "stock count import"
)

func ConsumedReason(stage pricing.Stage) string {
	return "consumed by stage: " + stage.Label()
}

type operationKey struct{}

// WithOperation tags ctx with an operation id unless it already has one.
// Log entries written under the same ctx share the id.
func WithOperation(ctx context.Context) context.Context {
	if _, ok := ctx.Value(operationKey{}).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, operationKey{}, uuid.NewString())
}

func operationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}

type Ledger struct {
	store store.Store
	log   *zap.Logger
}

func NewLedger(s store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: s, log: log}
}

// Bind returns a Ledger that writes through tx, for callers that already
// run inside a transaction.
func (l *Ledger) Bind(tx store.Store) *Ledger {
	return &Ledger{store: tx, log: l.log}
}

// AdjustQuantity adds delta to the item's quantity and records it. The
// increment is a single store-level statement, so concurrent adjustments of
// the same item never lose an update. Quantity may go below zero.
func (l *Ledger) AdjustQuantity(ctx context.Context, itemID uint, delta int, reason string, routeSheetID *uint) (int, error) {
	reason = strings.TrimSpace(reason)
	if delta == 0 {
		return 0, apperr.Invalid("delta", "delta must not be zero")
	}
	if reason == "" {
		return 0, apperr.Invalid("reason", "reason is required")
	}

	var after int
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		q, err := tx.IncrementQuantity(ctx, itemID, delta)
		if err != nil {
			return err
		}
		after = q
		return tx.AppendInventoryLog(ctx, &models.InventoryLog{
			InventoryItemID: itemID,
			RouteSheetID:    routeSheetID,
			QuantityChange:  delta,
			QuantityAfter:   q,
			Reason:          reason,
			OperationID:     operationID(ctx),
		})
	})
	if err != nil {
		return 0, err
	}

	l.log.Debug("inventory adjusted",
		zap.Uint("item_id", itemID),
		zap.Int("delta", delta),
		zap.Int("quantity", after),
		zap.String("reason", reason),
	)
	return after, nil
}

// AttachMaterial links an item to a stage of a route sheet and debits the
// consumed quantity.
func (l *Ledger) AttachMaterial(ctx context.Context, routeSheetID uint, stage pricing.Stage, itemID uint, quantityUsed int) (*models.StageMaterial, error) {
	if _, err := pricing.ParseStage(string(stage)); err != nil {
		return nil, err
	}
	if quantityUsed <= 0 {
		return nil, apperr.Invalid("quantity_used", "quantity used must be positive, got %d", quantityUsed)
	}
	if itemID == 0 {
		return nil, apperr.Invalid("inventory_item_id", "inventory item is required")
	}

	var link *models.StageMaterial
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetRouteSheet(ctx, routeSheetID); err != nil {
			return err
		}
		item, err := tx.GetInventoryItem(ctx, itemID)
		if err != nil {
			return err
		}

		m := &models.StageMaterial{
			RouteSheetID:    routeSheetID,
			Stage:           stage,
			InventoryItemID: itemID,
			QuantityUsed:    quantityUsed,
		}
		if err := tx.CreateStageMaterial(ctx, m); err != nil {
			return err
		}

		q, err := l.Bind(tx).AdjustQuantity(ctx, itemID, -quantityUsed, ConsumedReason(stage), &routeSheetID)
		if err != nil {
			return err
		}
		item.Quantity = q
		m.InventoryItem = item
		link = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// DetachMaterial removes a link and credits its quantity back to stock.
func (l *Ledger) DetachMaterial(ctx context.Context, linkID uint) (*models.StageMaterial, error) {
	var link *models.StageMaterial
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		m, err := tx.GetStageMaterial(ctx, linkID)
		if err != nil {
			return err
		}
		if err := l.Bind(tx).Restock(ctx, m, ReasonLinkRemoved); err != nil {
			return err
		}
		link = m
		return nil
	})
	return link, err
}

// Restock credits link.QuantityUsed back to the item and deletes the link.
func (l *Ledger) Restock(ctx context.Context, link *models.StageMaterial, reason string) error {
	return l.store.Transaction(ctx, func(tx store.Store) error {
		routeSheetID := link.RouteSheetID
		if _, err := l.Bind(tx).AdjustQuantity(ctx, link.InventoryItemID, link.QuantityUsed, reason, &routeSheetID); err != nil {
			return err
		}
		return tx.DeleteStageMaterial(ctx, link.ID)
	})
}
