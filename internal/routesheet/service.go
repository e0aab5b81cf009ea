// Package routesheet records the work an employee completed across the
// production stages, prices it and books the consumed materials.
package routesheet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/inventory"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/pricing"
	"routesheet-backend/internal/store"
)

type MaterialInput struct {
	InventoryItemID uint `json:"inventory_item_id"`
	QuantityUsed    int  `json:"quantity_used"`
}

// Input is the body of create and update. A nil Materials map means "leave
// the links as they are" on update; an empty one removes them all.
type Input struct {
	EmployeeID uint `json:"employee_id"`
	pricing.StageCounts
	DefectCount int                               `json:"defect_count"`
	Materials   map[pricing.Stage][]MaterialInput `json:"materials"`
}

func (in Input) validate() error {
	if in.EmployeeID == 0 {
		return apperr.Invalid("employee_id", "employee is required")
	}
	if err := in.StageCounts.Validate(); err != nil {
		return err
	}
	if in.DefectCount < 0 {
		return apperr.Invalid("defect_count", "count cannot be negative, got %d", in.DefectCount)
	}
	for stage, list := range in.Materials {
		if _, err := pricing.ParseStage(string(stage)); err != nil {
			return apperr.Invalid("materials", "unknown stage %q", stage)
		}
		for _, m := range list {
			if m.InventoryItemID == 0 {
				return apperr.Invalid("materials", "inventory item is required for stage %s", stage)
			}
			if m.QuantityUsed <= 0 {
				return apperr.Invalid("materials", "quantity used must be positive for stage %s, got %d", stage, m.QuantityUsed)
			}
		}
	}
	return nil
}

type Service struct {
	store           store.Store
	ledger          *inventory.Ledger
	log             *zap.Logger
	restockOnDelete bool
}

func NewService(s store.Store, ledger *inventory.Ledger, log *zap.Logger, restockOnDelete bool) *Service {
	return &Service{store: s, ledger: ledger, log: log, restockOnDelete: restockOnDelete}
}

func (s *Service) List(ctx context.Context, f store.RouteSheetFilter) ([]models.RouteSheet, error) {
	return s.store.ListRouteSheets(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.RouteSheet, error) {
	return s.store.GetRouteSheet(ctx, id)
}

// checkRefs turns missing employees and items into validation errors before
// anything is written.
func checkRefs(ctx context.Context, tx store.Store, in Input) error {
	if _, err := tx.GetEmployee(ctx, in.EmployeeID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("employee_id", "employee %d does not exist", in.EmployeeID)
		}
		return err
	}
	for _, list := range in.Materials {
		for _, m := range list {
			if _, err := tx.GetInventoryItem(ctx, m.InventoryItemID); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Invalid("materials", "inventory item %d does not exist", m.InventoryItemID)
				}
				return err
			}
		}
	}
	return nil
}

// attachAll books the materials stage by stage in shop-floor order.
func (s *Service) attachAll(ctx context.Context, tx store.Store, routeSheetID uint, materials map[pricing.Stage][]MaterialInput) error {
	ledger := s.ledger.Bind(tx)
	for _, stage := range pricing.Stages() {
		for _, m := range materials[stage] {
			if _, err := ledger.AttachMaterial(ctx, routeSheetID, stage, m.InventoryItemID, m.QuantityUsed); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) restockAll(ctx context.Context, tx store.Store, links []models.StageMaterial, reason string) error {
	ledger := s.ledger.Bind(tx)
	for i := range links {
		if err := ledger.Restock(ctx, &links[i], reason); err != nil {
			return err
		}
	}
	return nil
}

// Create prices the sheet, stores it and debits its materials, all in one
// transaction.
func (s *Service) Create(ctx context.Context, in Input) (*models.RouteSheet, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx = inventory.WithOperation(ctx)

	var created *models.RouteSheet
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := checkRefs(ctx, tx, in); err != nil {
			return err
		}

		rs := &models.RouteSheet{
			EmployeeID:  in.EmployeeID,
			StageCounts: in.StageCounts,
			DefectCount: in.DefectCount,
			TotalAmount: pricing.ComputeTotal(in.StageCounts),
		}
		if err := tx.CreateRouteSheet(ctx, rs); err != nil {
			return err
		}
		if err := s.attachAll(ctx, tx, rs.ID, in.Materials); err != nil {
			return err
		}

		loaded, err := tx.GetRouteSheet(ctx, rs.ID)
		if err != nil {
			return err
		}
		created = loaded
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityRouteSheet,
			EntityID:    rs.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("route sheet for employee %d, total %s", rs.EmployeeID, rs.TotalAmount.StringFixed(2)),
			After:       loaded,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("route sheet created",
		zap.Uint("route_sheet_id", created.ID),
		zap.Uint("employee_id", created.EmployeeID),
		zap.String("total", created.TotalAmount.StringFixed(2)),
		zap.Int("materials", len(created.Materials)),
	)
	return created, nil
}

// Update replaces the counts and recomputes the total. When in.Materials is
// set, the previous links are returned to stock and the new ones booked.
func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.RouteSheet, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx = inventory.WithOperation(ctx)

	var updated *models.RouteSheet
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetRouteSheet(ctx, id)
		if err != nil {
			return err
		}
		if err := checkRefs(ctx, tx, in); err != nil {
			return err
		}

		rs := &models.RouteSheet{
			ID:          id,
			EmployeeID:  in.EmployeeID,
			StageCounts: in.StageCounts,
			DefectCount: in.DefectCount,
			TotalAmount: pricing.ComputeTotal(in.StageCounts),
		}
		if err := tx.UpdateRouteSheet(ctx, rs); err != nil {
			return err
		}

		if in.Materials != nil {
			if err := s.restockAll(ctx, tx, before.Materials, inventory.ReasonLinkRemoved); err != nil {
				return err
			}
			if err := s.attachAll(ctx, tx, id, in.Materials); err != nil {
				return err
			}
		}

		after, err := tx.GetRouteSheet(ctx, id)
		if err != nil {
			return err
		}
		updated = after
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityRouteSheet,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("route sheet %d updated, total %s", id, after.TotalAmount.StringFixed(2)),
			Before:      before,
			After:       after,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the sheet and its links. Unless restocking is disabled the
// consumed materials are credited back first.
func (s *Service) Delete(ctx context.Context, id uint) error {
	ctx = inventory.WithOperation(ctx)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetRouteSheet(ctx, id)
		if err != nil {
			return err
		}
		if s.restockOnDelete {
			if err := s.restockAll(ctx, tx, before.Materials, inventory.ReasonRouteSheetDeleted); err != nil {
				return err
			}
		}
		if err := tx.DeleteRouteSheet(ctx, id); err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityRouteSheet,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("route sheet %d deleted", id),
			Before:      before,
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("route sheet deleted", zap.Uint("route_sheet_id", id), zap.Bool("restocked", s.restockOnDelete))
	return nil
}

func (s *Service) Materials(ctx context.Context, routeSheetID uint) ([]models.StageMaterial, error) {
	if _, err := s.store.GetRouteSheet(ctx, routeSheetID); err != nil {
		return nil, err
	}
	return s.store.ListStageMaterials(ctx, routeSheetID)
}

// AttachMaterial adds one link to an existing sheet.
func (s *Service) AttachMaterial(ctx context.Context, routeSheetID uint, stage pricing.Stage, itemID uint, quantityUsed int) (*models.StageMaterial, error) {
	ctx = inventory.WithOperation(ctx)
	var link *models.StageMaterial
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		m, err := s.ledger.Bind(tx).AttachMaterial(ctx, routeSheetID, stage, itemID, quantityUsed)
		if err != nil {
			return err
		}
		link = m
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityStageMaterial,
			EntityID:    m.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("%d x item %d booked to %s of route sheet %d", quantityUsed, itemID, stage.Label(), routeSheetID),
			After:       m,
		})
	})
	return link, err
}

// DetachMaterial removes one link and returns its quantity to stock.
func (s *Service) DetachMaterial(ctx context.Context, linkID uint) error {
	ctx = inventory.WithOperation(ctx)
	return s.store.Transaction(ctx, func(tx store.Store) error {
		m, err := s.ledger.Bind(tx).DetachMaterial(ctx, linkID)
		if err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityStageMaterial,
			EntityID:    linkID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("%d x item %d returned from route sheet %d", m.QuantityUsed, m.InventoryItemID, m.RouteSheetID),
			Before:      m,
		})
	})
}
