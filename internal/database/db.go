package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"routesheet-backend/internal/config"
	"routesheet-backend/internal/models"
)

// Open connects to Postgres and migrates the schema.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := Migrate(db, log); err != nil {
		return nil, err
	}

	log.Info("database connection established, migration complete")
	return db, nil
}

// checkConstraints are added by hand, AutoMigrate does not manage CHECKs.
var checkConstraints = []struct {
	table string
	name  string
	expr  string
}{
	{"stage_materials", "chk_stage_materials_quantity_used", "quantity_used > 0"},
	{"inventory_items", "chk_inventory_items_min_quantity", "min_quantity >= 0"},
	{"route_sheets", "chk_route_sheets_counts", "vtk_count >= 0 AND soldering_count >= 0 AND lacquering_count >= 0 AND stamping_count >= 0 AND fuse_soldering_count >= 0 AND defect_count >= 0"},
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.Employee{},
		&models.InventoryItem{},
		&models.RouteSheet{},
		&models.StageMaterial{},
		&models.InventoryLog{},
		&models.AuditLog{},
		&models.Operator{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, c := range checkConstraints {
		var exists bool
		db.Raw(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.table_constraints
				WHERE table_name = ? AND constraint_name = ?
			)
		`, c.table, c.name).Scan(&exists)
		if exists {
			continue
		}

		stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", c.table, c.name, c.expr)
		if err := db.Exec(stmt).Error; err != nil {
			// existing rows may violate the check; the service validates anyway
			log.Warn("check constraint not added", zap.String("constraint", c.name), zap.Error(err))
			continue
		}
		log.Info("check constraint added", zap.String("constraint", c.name))
	}

	return uniqueItemNames(db, log)
}

// uniqueItemNames replaces the plain unique index on inventory_items.name
// with one on LOWER(name), matching FindInventoryItemByName.
func uniqueItemNames(db *gorm.DB, log *zap.Logger) error {
	err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_items_name_lower ON inventory_items (LOWER(name))").Error
	if err != nil {
		// rows that differ only by case have to be merged by hand first
		log.Warn("case-insensitive name index not added", zap.Error(err))
		return nil
	}
	if err := db.Exec("DROP INDEX IF EXISTS idx_inventory_items_name").Error; err != nil {
		return fmt.Errorf("drop old name index: %w", err)
	}
	return nil
}
