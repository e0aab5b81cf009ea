package models

import "time"

type Unit string

const (
	UnitPiece    Unit = "piece"
	UnitLiter    Unit = "liter"
	UnitKilogram Unit = "kilogram"
	UnitMeter    Unit = "meter"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitLiter, UnitKilogram, UnitMeter:
		return true
	}
	return false
}

type StockStatus string

const (
	StockOK       StockStatus = "ok"
	StockLow      StockStatus = "low"
	StockCritical StockStatus = "critical"
)

// InventoryItem: a material kept in the shop stock. Quantity is only ever
// changed through the ledger and may drop below zero when a stage consumed
// more than was counted. Names are unique ignoring case.
type InventoryItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	Unit        Unit      `gorm:"size:20;not null;default:piece" json:"unit"`
	MinQuantity int       `gorm:"not null;default:0" json:"min_quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status is derived from the current quantity on every read and never stored.
func (i InventoryItem) Status() StockStatus {
	return StatusOf(i.Quantity, i.MinQuantity)
}

func StatusOf(quantity, minQuantity int) StockStatus {
	switch {
	case quantity <= minQuantity:
		return StockCritical
	case quantity <= 2*minQuantity:
		return StockLow
	default:
		return StockOK
	}
}
