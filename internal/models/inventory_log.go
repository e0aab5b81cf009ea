package models

import "time"

// InventoryLog: append-only record of every quantity change. No foreign key to
// the item so the history outlives a deleted item.
type InventoryLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	InventoryItemID uint      `gorm:"index;not null" json:"inventory_item_id"`
	RouteSheetID    *uint     `gorm:"index" json:"route_sheet_id"`
	QuantityChange  int       `gorm:"not null" json:"quantity_change"`
	QuantityAfter   int       `gorm:"not null" json:"quantity_after"`
	Reason          string    `gorm:"size:255;not null" json:"reason"`
	OperationID     string    `gorm:"size:36;index" json:"operation_id"` // groups entries written by one request
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
