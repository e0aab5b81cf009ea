// Package employee manages the people route sheets are written for.
package employee

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

type Input struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Position = strings.TrimSpace(in.Position)
	if in.Name == "" {
		return apperr.Invalid("name", "name is required")
	}
	if utf8.RuneCountInString(in.Name) > 100 {
		return apperr.Invalid("name", "name is longer than 100 characters")
	}
	return nil
}

type Service struct {
	store store.Store
	log   *zap.Logger
}

func NewService(s store.Store, log *zap.Logger) *Service {
	return &Service{store: s, log: log}
}

func (s *Service) List(ctx context.Context) ([]models.Employee, error) {
	return s.store.ListEmployees(ctx)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Employee, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e := &models.Employee{Name: in.Name, Position: in.Position}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEmployee(ctx, e); err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityEmployee,
			EntityID:    e.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("employee %q added", e.Name),
			After:       e,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("employee created", zap.Uint("employee_id", e.ID))
	return e, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.Employee, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e := &models.Employee{ID: id, Name: in.Name, Position: in.Position}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateEmployee(ctx, e); err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityEmployee,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("employee %q updated", e.Name),
			Before:      before,
			After:       e,
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Delete fails with apperr.ErrConflict while route sheets reference the
// employee.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		before, err := tx.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteEmployee(ctx, id); err != nil {
			return err
		}
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityEmployee,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("employee %q removed", before.Name),
			Before:      before,
		})
	})
}
