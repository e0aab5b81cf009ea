package models

import (
	"time"

	"github.com/shopspring/decimal"

	"routesheet-backend/internal/pricing"
)

// RouteSheet: one employee's completed units across the production stages.
// TotalAmount is always pricing.ComputeTotal of the stored counts.
type RouteSheet struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EmployeeID uint      `gorm:"index;not null" json:"employee_id"`
	Employee   *Employee `gorm:"constraint:OnDelete:RESTRICT" json:"employee,omitempty"`

	pricing.StageCounts `gorm:"embedded"`

	DefectCount int             `gorm:"not null;default:0" json:"defect_count"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`

	Materials []StageMaterial `gorm:"foreignKey:RouteSheetID;constraint:OnDelete:CASCADE" json:"materials,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
