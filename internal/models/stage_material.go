package models

import (
	"time"

	"routesheet-backend/internal/pricing"
)

// StageMaterial: quantity of an inventory item consumed by one stage of a
// route sheet. Creating it debits stock, removing it credits stock back.
type StageMaterial struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	RouteSheetID    uint           `gorm:"index;not null" json:"route_sheet_id"`
	Stage           pricing.Stage  `gorm:"size:30;not null" json:"stage"`
	InventoryItemID uint           `gorm:"index;not null" json:"inventory_item_id"`
	InventoryItem   *InventoryItem `gorm:"constraint:OnDelete:RESTRICT" json:"inventory_item,omitempty"`
	QuantityUsed    int            `gorm:"not null" json:"quantity_used"`
	CreatedAt       time.Time      `json:"created_at"`
}
