package models

import "testing"

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		name     string
		quantity int
		min      int
		want     StockStatus
	}{
		{"well below minimum", 50, 100, StockCritical},
		{"at minimum", 100, 100, StockCritical},
		{"between minimum and double", 150, 100, StockLow},
		{"at double minimum", 200, 100, StockLow},
		{"above double minimum", 250, 100, StockOK},
		{"negative stock", -3, 100, StockCritical},
		{"zero minimum with stock", 1, 0, StockOK},
		{"zero minimum without stock", 0, 0, StockCritical},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.quantity, tc.min); got != tc.want {
				t.Errorf("StatusOf(%d, %d) = %s, want %s", tc.quantity, tc.min, got, tc.want)
			}
		})
	}

	item := InventoryItem{Quantity: 150, MinQuantity: 100}
	if item.Status() != StockLow {
		t.Errorf("Expected item status low, got %s", item.Status())
	}
}

func TestUnit_Valid(t *testing.T) {
	for _, u := range []Unit{UnitPiece, UnitLiter, UnitKilogram, UnitMeter} {
		if !u.Valid() {
			t.Errorf("Expected %s to be valid", u)
		}
	}
	if Unit("koli").Valid() {
		t.Error("Expected unknown unit to be invalid")
	}
}
