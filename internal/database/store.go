package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

// Store implements store.Store on gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.ErrConflict
	}
	return apperr.Store(op, err)
}

func affected(op string, res *gorm.DB) error {
	if res.Error != nil {
		return translate(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// --- employees ---

func (s *Store) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	err := s.db.WithContext(ctx).Order("name asc, id asc").Find(&out).Error
	return out, translate("list employees", err)
}

func (s *Store) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate("get employee", err)
	}
	return &e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, e *models.Employee) error {
	return translate("create employee", s.db.WithContext(ctx).Create(e).Error)
}

func (s *Store) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	res := s.db.WithContext(ctx).Model(e).Select("name", "position").Updates(e)
	if err := affected("update employee", res); err != nil {
		return err
	}
	return translate("reload employee", s.db.WithContext(ctx).First(e, "id = ?", e.ID).Error)
}

func (s *Store) DeleteEmployee(ctx context.Context, id uint) error {
	return affected("delete employee", s.db.WithContext(ctx).Delete(&models.Employee{}, "id = ?", id))
}

// --- inventory ---

func (s *Store) ListInventoryItems(ctx context.Context) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	err := s.db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, translate("list inventory", err)
}

func (s *Store) GetInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := s.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate("get inventory item", err)
	}
	return &it, nil
}

func (s *Store) LockInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var it models.InventoryItem
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error
	if err != nil {
		return nil, translate("lock inventory item", err)
	}
	return &it, nil
}

func (s *Store) FindInventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := s.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&it).Error; err != nil {
		return nil, translate("find inventory item", err)
	}
	return &it, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	return translate("create inventory item", s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	res := s.db.WithContext(ctx).Model(item).Select("name", "unit", "min_quantity").Updates(item)
	if err := affected("update inventory item", res); err != nil {
		return err
	}
	return translate("reload inventory item", s.db.WithContext(ctx).First(item, "id = ?", item.ID).Error)
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id uint) error {
	return affected("delete inventory item", s.db.WithContext(ctx).Delete(&models.InventoryItem{}, "id = ?", id))
}

// IncrementQuantity issues UPDATE ... SET quantity = quantity + ? RETURNING
// quantity, so concurrent deltas never overwrite each other.
func (s *Store) IncrementQuantity(ctx context.Context, id uint, delta int) (int, error) {
	var item models.InventoryItem
	res := s.db.WithContext(ctx).
		Model(&item).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	if err := affected("increment quantity", res); err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	return translate("append inventory log", s.db.WithContext(ctx).Create(entry).Error)
}

func (s *Store) ListInventoryLogs(ctx context.Context, f store.LogFilter) ([]models.InventoryLog, error) {
	q := s.db.WithContext(ctx).Model(&models.InventoryLog{})
	if f.InventoryItemID != 0 {
		q = q.Where("inventory_item_id = ?", f.InventoryItemID)
	}
	if f.RouteSheetID != 0 {
		q = q.Where("route_sheet_id = ?", f.RouteSheetID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.InventoryLog
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, translate("list inventory logs", err)
}

// --- route sheets ---

func (s *Store) sheetQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Employee").
		Preload("Materials", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Materials.InventoryItem")
}

func (s *Store) ListRouteSheets(ctx context.Context, f store.RouteSheetFilter) ([]models.RouteSheet, error) {
	q := s.sheetQuery(ctx)
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}
	var out []models.RouteSheet
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, translate("list route sheets", err)
}

func (s *Store) GetRouteSheet(ctx context.Context, id uint) (*models.RouteSheet, error) {
	var rs models.RouteSheet
	if err := s.sheetQuery(ctx).First(&rs, "id = ?", id).Error; err != nil {
		return nil, translate("get route sheet", err)
	}
	return &rs, nil
}

func (s *Store) CreateRouteSheet(ctx context.Context, rs *models.RouteSheet) error {
	return translate("create route sheet", s.db.WithContext(ctx).Omit(clause.Associations).Create(rs).Error)
}

func (s *Store) UpdateRouteSheet(ctx context.Context, rs *models.RouteSheet) error {
	res := s.db.WithContext(ctx).
		Model(rs).
		Select("employee_id", "vtk_count", "soldering_count", "lacquering_count",
			"stamping_count", "fuse_soldering_count", "defect_count", "total_amount").
		Updates(rs)
	return affected("update route sheet", res)
}

func (s *Store) DeleteRouteSheet(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_sheet_id = ?", id).Delete(&models.StageMaterial{}).Error; err != nil {
			return translate("delete stage materials", err)
		}
		return affected("delete route sheet", tx.Delete(&models.RouteSheet{}, "id = ?", id))
	})
}

func (s *Store) ListStageMaterials(ctx context.Context, routeSheetID uint) ([]models.StageMaterial, error) {
	var out []models.StageMaterial
	err := s.db.WithContext(ctx).
		Preload("InventoryItem").
		Where("route_sheet_id = ?", routeSheetID).
		Order("id asc").
		Find(&out).Error
	return out, translate("list stage materials", err)
}

func (s *Store) GetStageMaterial(ctx context.Context, id uint) (*models.StageMaterial, error) {
	var m models.StageMaterial
	if err := s.db.WithContext(ctx).Preload("InventoryItem").First(&m, "id = ?", id).Error; err != nil {
		return nil, translate("get stage material", err)
	}
	return &m, nil
}

func (s *Store) CreateStageMaterial(ctx context.Context, m *models.StageMaterial) error {
	return translate("create stage material", s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *Store) DeleteStageMaterial(ctx context.Context, id uint) error {
	return affected("delete stage material", s.db.WithContext(ctx).Delete(&models.StageMaterial{}, "id = ?", id))
}

// --- audit ---

func (s *Store) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return translate("append audit log", s.db.WithContext(ctx).Create(entry).Error)
}

func (s *Store) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.AuditLog
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, translate("list audit logs", err)
}

// --- operators ---

func (s *Store) CountOperators(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Operator{}).Count(&n).Error
	return n, translate("count operators", err)
}

func (s *Store) GetOperator(ctx context.Context, id uint) (*models.Operator, error) {
	var op models.Operator
	if err := s.db.WithContext(ctx).First(&op, "id = ?", id).Error; err != nil {
		return nil, translate("get operator", err)
	}
	return &op, nil
}

func (s *Store) FindOperatorByEmail(ctx context.Context, email string) (*models.Operator, error) {
	var op models.Operator
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&op).Error; err != nil {
		return nil, translate("find operator", err)
	}
	return &op, nil
}

func (s *Store) CreateOperator(ctx context.Context, op *models.Operator) error {
	return translate("create operator", s.db.WithContext(ctx).Create(op).Error)
}

// LockOperators takes a self-conflicting table lock, so a second registering
// transaction waits and then sees the first operator.
func (s *Store) LockOperators(ctx context.Context) error {
	return translate("lock operators", s.db.WithContext(ctx).Exec("LOCK TABLE operators IN SHARE ROW EXCLUSIVE MODE").Error)
}
