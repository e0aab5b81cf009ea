// Package store defines the persistence contract the services work against.
// Implementations: internal/database (gorm + Postgres) and internal/store/memory.
package store

import (
	"context"
	"time"

	"routesheet-backend/internal/models"
)

type RouteSheetFilter struct {
	EmployeeID uint
	From       time.Time // inclusive, zero = unbounded
	To         time.Time // exclusive, zero = unbounded
}

type LogFilter struct {
	InventoryItemID uint
	RouteSheetID    uint
	Limit           int
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	Limit      int
}

type EmployeeStore interface {
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	GetEmployee(ctx context.Context, id uint) (*models.Employee, error)
	CreateEmployee(ctx context.Context, e *models.Employee) error
	UpdateEmployee(ctx context.Context, e *models.Employee) error
	// DeleteEmployee fails with apperr.ErrConflict while route sheets reference the employee.
	DeleteEmployee(ctx context.Context, id uint) error
}

type InventoryStore interface {
	ListInventoryItems(ctx context.Context) ([]models.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error)
	// LockInventoryItem reads the item and holds a row lock on it until the
	// surrounding transaction ends.
	LockInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error)
	FindInventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error
	// UpdateInventoryItem writes name, unit and min_quantity. Quantity is
	// changed only through IncrementQuantity.
	UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error
	DeleteInventoryItem(ctx context.Context, id uint) error
	// IncrementQuantity adds delta to the stored quantity in a single atomic
	// statement and returns the new value.
	IncrementQuantity(ctx context.Context, id uint, delta int) (int, error)

	AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error
	ListInventoryLogs(ctx context.Context, f LogFilter) ([]models.InventoryLog, error)
}

type RouteSheetStore interface {
	// ListRouteSheets returns newest first with Employee and Materials loaded.
	ListRouteSheets(ctx context.Context, f RouteSheetFilter) ([]models.RouteSheet, error)
	GetRouteSheet(ctx context.Context, id uint) (*models.RouteSheet, error)
	CreateRouteSheet(ctx context.Context, rs *models.RouteSheet) error
	UpdateRouteSheet(ctx context.Context, rs *models.RouteSheet) error
	// DeleteRouteSheet removes the sheet together with its stage materials.
	// Stock is not touched here.
	DeleteRouteSheet(ctx context.Context, id uint) error

	ListStageMaterials(ctx context.Context, routeSheetID uint) ([]models.StageMaterial, error)
	GetStageMaterial(ctx context.Context, id uint) (*models.StageMaterial, error)
	CreateStageMaterial(ctx context.Context, m *models.StageMaterial) error
	DeleteStageMaterial(ctx context.Context, id uint) error
}

type AuditStore interface {
	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}

type OperatorStore interface {
	CountOperators(ctx context.Context) (int64, error)
	GetOperator(ctx context.Context, id uint) (*models.Operator, error)
	FindOperatorByEmail(ctx context.Context, email string) (*models.Operator, error)
	CreateOperator(ctx context.Context, op *models.Operator) error
	// LockOperators serializes first-operator registration until the
	// surrounding transaction ends.
	LockOperators(ctx context.Context) error
}

type Store interface {
	EmployeeStore
	InventoryStore
	RouteSheetStore
	AuditStore
	OperatorStore

	// Transaction runs fn against a Store bound to one transaction. A non-nil
	// error from fn rolls every write back. Calls nest.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
