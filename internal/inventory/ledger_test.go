package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/pricing"
	"routesheet-backend/internal/store"
	"routesheet-backend/internal/store/memory"
)

type fixture struct {
	store  *memory.Store
	ledger *Ledger
	sheet  *models.RouteSheet
	item   *models.InventoryItem
}

func newFixture(t *testing.T, quantity int) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	emp := &models.Employee{Name: "Olena"}
	if err := s.CreateEmployee(ctx, emp); err != nil {
		t.Fatalf("Failed to create employee: %v", err)
	}
	sheet := &models.RouteSheet{EmployeeID: emp.ID}
	if err := s.CreateRouteSheet(ctx, sheet); err != nil {
		t.Fatalf("Failed to create route sheet: %v", err)
	}
	item := &models.InventoryItem{Name: "Connector", Quantity: quantity, Unit: models.UnitPiece, MinQuantity: 10}
	if err := s.CreateInventoryItem(ctx, item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	return &fixture{store: s, ledger: NewLedger(s, zap.NewNop()), sheet: sheet, item: item}
}

func (f *fixture) quantity(t *testing.T) int {
	t.Helper()
	it, err := f.store.GetInventoryItem(context.Background(), f.item.ID)
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	return it.Quantity
}

func (f *fixture) logs(t *testing.T) []models.InventoryLog {
	t.Helper()
	logs, err := f.store.ListInventoryLogs(context.Background(), store.LogFilter{InventoryItemID: f.item.ID})
	if err != nil {
		t.Fatalf("Failed to list logs: %v", err)
	}
	return logs
}

func TestLedger_AdjustQuantity(t *testing.T) {
	tests := []struct {
		name         string
		itemID       func(f *fixture) uint
		delta        int
		reason       string
		wantQuantity int
		wantErr      func(error) bool
	}{
		{
			name:         "debit",
			delta:        -30,
			reason:       "write-off",
			wantQuantity: 70,
		},
		{
			name:         "credit",
			delta:        25,
			reason:       "delivery",
			wantQuantity: 125,
		},
		{
			name:         "may go negative",
			delta:        -150,
			reason:       "overuse",
			wantQuantity: -50,
		},
		{
			name:         "zero delta",
			delta:        0,
			reason:       "nothing",
			wantQuantity: 100,
			wantErr:      apperr.IsValidation,
		},
		{
			name:         "blank reason",
			delta:        5,
			reason:       "   ",
			wantQuantity: 100,
			wantErr:      apperr.IsValidation,
		},
		{
			name:         "unknown item",
			itemID:       func(*fixture) uint { return 999 },
			delta:        5,
			reason:       "delivery",
			wantQuantity: 100,
			wantErr:      func(err error) bool { return errors.Is(err, apperr.ErrNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			id := f.item.ID
			if tt.itemID != nil {
				id = tt.itemID(f)
			}

			got, err := f.ledger.AdjustQuantity(context.Background(), id, tt.delta, tt.reason, nil)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("Unexpected error: %v", err)
				}
				if n := len(f.logs(t)); n != 0 {
					t.Errorf("Expected no log entries after a failed adjustment, got %d", n)
				}
			} else {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if got != tt.wantQuantity {
					t.Errorf("Expected returned quantity %d, got %d", tt.wantQuantity, got)
				}
				logs := f.logs(t)
				if len(logs) != 1 {
					t.Fatalf("Expected 1 log entry, got %d", len(logs))
				}
				if logs[0].QuantityChange != tt.delta || logs[0].QuantityAfter != tt.wantQuantity || logs[0].Reason != tt.reason {
					t.Errorf("Unexpected log entry %+v", logs[0])
				}
			}
			if q := f.quantity(t); q != tt.wantQuantity {
				t.Errorf("Expected stored quantity %d, got %d", tt.wantQuantity, q)
			}
		})
	}
}

func TestLedger_ConcurrentAdjustments(t *testing.T) {
	f := newFixture(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.AdjustQuantity(context.Background(), f.item.ID, -5, "parallel", nil); err != nil {
				t.Errorf("Adjust failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if q := f.quantity(t); q != 90 {
		t.Errorf("Expected quantity 90, got %d", q)
	}
	if n := len(f.logs(t)); n != 2 {
		t.Errorf("Expected 2 log entries, got %d", n)
	}
}

// failingLogStore rejects every log append, inside transactions too.
type failingLogStore struct {
	store.Store
}

var errLogWrite = errors.New("log table unavailable")

func (s failingLogStore) AppendInventoryLog(context.Context, *models.InventoryLog) error {
	return errLogWrite
}

func (s failingLogStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(failingLogStore{tx})
	})
}

func TestLedger_AdjustIsAtomic(t *testing.T) {
	f := newFixture(t, 100)
	l := NewLedger(failingLogStore{f.store}, zap.NewNop())

	_, err := l.AdjustQuantity(context.Background(), f.item.ID, -10, "write-off", nil)
	if !errors.Is(err, errLogWrite) {
		t.Fatalf("Expected log write error, got %v", err)
	}
	if q := f.quantity(t); q != 100 {
		t.Errorf("Expected quantity rolled back to 100, got %d", q)
	}
}

func TestLedger_AttachDetachRoundTrip(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	link, err := f.ledger.AttachMaterial(ctx, f.sheet.ID, pricing.StageSoldering, f.item.ID, 7)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if q := f.quantity(t); q != 93 {
		t.Errorf("Expected quantity 93 after attach, got %d", q)
	}
	if link.InventoryItem == nil || link.InventoryItem.Quantity != 93 {
		t.Errorf("Expected attached link to carry the updated item, got %+v", link.InventoryItem)
	}

	if _, err := f.ledger.DetachMaterial(ctx, link.ID); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if q := f.quantity(t); q != 100 {
		t.Errorf("Expected quantity back at 100, got %d", q)
	}

	logs := f.logs(t)
	if len(logs) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(logs))
	}
	// newest first
	if logs[1].QuantityChange != -7 || logs[0].QuantityChange != 7 {
		t.Errorf("Expected -7 then +7, got %d then %d", logs[1].QuantityChange, logs[0].QuantityChange)
	}
	if logs[1].Reason != ConsumedReason(pricing.StageSoldering) || logs[0].Reason != ReasonLinkRemoved {
		t.Errorf("Unexpected reasons %q, %q", logs[1].Reason, logs[0].Reason)
	}
	for _, l := range logs {
		if l.RouteSheetID == nil || *l.RouteSheetID != f.sheet.ID {
			t.Errorf("Expected log entry to reference sheet %d, got %v", f.sheet.ID, l.RouteSheetID)
		}
	}

	if _, err := f.store.GetStageMaterial(ctx, link.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected link to be deleted, got %v", err)
	}
}

func TestLedger_AttachRejects(t *testing.T) {
	tests := []struct {
		name    string
		sheetID func(f *fixture) uint
		stage   pricing.Stage
		itemID  func(f *fixture) uint
		qty     int
		wantErr func(error) bool
	}{
		{
			name:    "zero quantity",
			stage:   pricing.StageVTK,
			qty:     0,
			wantErr: apperr.IsValidation,
		},
		{
			name:    "unknown stage",
			stage:   "polishing",
			qty:     1,
			wantErr: apperr.IsValidation,
		},
		{
			name:    "unknown item",
			stage:   pricing.StageVTK,
			itemID:  func(*fixture) uint { return 404 },
			qty:     1,
			wantErr: func(err error) bool { return errors.Is(err, apperr.ErrNotFound) },
		},
		{
			name:    "unknown route sheet",
			sheetID: func(*fixture) uint { return 404 },
			stage:   pricing.StageVTK,
			qty:     1,
			wantErr: func(err error) bool { return errors.Is(err, apperr.ErrNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			sheetID, itemID := f.sheet.ID, f.item.ID
			if tt.sheetID != nil {
				sheetID = tt.sheetID(f)
			}
			if tt.itemID != nil {
				itemID = tt.itemID(f)
			}

			_, err := f.ledger.AttachMaterial(context.Background(), sheetID, tt.stage, itemID, tt.qty)
			if !tt.wantErr(err) {
				t.Fatalf("Unexpected error: %v", err)
			}
			if q := f.quantity(t); q != 100 {
				t.Errorf("Expected quantity untouched, got %d", q)
			}
			if n := len(f.logs(t)); n != 0 {
				t.Errorf("Expected no log entries, got %d", n)
			}
		})
	}
}

func TestWithOperation(t *testing.T) {
	f := newFixture(t, 100)
	ctx := WithOperation(context.Background())

	_, _ = f.ledger.AdjustQuantity(ctx, f.item.ID, 1, "a", nil)
	_, _ = f.ledger.AdjustQuantity(WithOperation(ctx), f.item.ID, 1, "b", nil)
	_, _ = f.ledger.AdjustQuantity(context.Background(), f.item.ID, 1, "c", nil)

	logs := f.logs(t)
	if len(logs) != 3 {
		t.Fatalf("Expected 3 logs, got %d", len(logs))
	}
	c, b, a := logs[0], logs[1], logs[2]
	if a.OperationID == "" || a.OperationID != b.OperationID {
		t.Errorf("Expected a and b to share an operation id, got %q and %q", a.OperationID, b.OperationID)
	}
	if c.OperationID == a.OperationID {
		t.Error("Expected c to get its own operation id")
	}
}
