package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
	"routesheet-backend/internal/store/memory"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name         string
		ctx          context.Context
		entry        Entry
		wantOperator *uint
		wantBefore   string
		wantAfter    string
	}{
		{
			name: "anonymous create",
			ctx:  context.Background(),
			entry: Entry{
				EntityType: EntityEmployee, EntityID: 1, Action: models.AuditActionCreate,
				After: map[string]string{"name": "Olena"},
			},
			wantBefore: "null",
			wantAfter:  `{"name":"Olena"}`,
		},
		{
			name: "attributed delete",
			ctx:  WithActor(context.Background(), Actor{ID: 7, Name: "Admin"}),
			entry: Entry{
				EntityType: EntityRouteSheet, EntityID: 3, Action: models.AuditActionDelete,
				Before: map[string]int{"vtk_count": 2},
			},
			wantOperator: func() *uint { v := uint(7); return &v }(),
			wantBefore:   `{"vtk_count":2}`,
			wantAfter:    "null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			if err := Write(tt.ctx, s, tt.entry); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			logs, _ := s.ListAuditLogs(context.Background(), store.AuditFilter{})
			if len(logs) != 1 {
				t.Fatalf("Expected 1 log, got %d", len(logs))
			}
			got := logs[0]
			if got.BeforeData != tt.wantBefore || got.AfterData != tt.wantAfter {
				t.Errorf("Expected before=%s after=%s, got before=%s after=%s",
					tt.wantBefore, tt.wantAfter, got.BeforeData, got.AfterData)
			}
			switch {
			case tt.wantOperator == nil && got.OperatorID != nil:
				t.Errorf("Expected no operator, got %d", *got.OperatorID)
			case tt.wantOperator != nil && (got.OperatorID == nil || *got.OperatorID != *tt.wantOperator):
				t.Errorf("Expected operator %d, got %v", *tt.wantOperator, got.OperatorID)
			}
		})
	}
}

func TestListHandler(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_ = Write(ctx, s, Entry{EntityType: EntityEmployee, EntityID: 1, Action: models.AuditActionCreate})
	_ = Write(ctx, s, Entry{EntityType: EntityInventoryItem, EntityID: 1, Action: models.AuditActionCreate})
	_ = Write(ctx, s, Entry{EntityType: EntityInventoryItem, EntityID: 2, Action: models.AuditActionUpdate})

	app := fiber.New()
	app.Get("/api/audit-logs", ListHandler(s))

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?entity_type=inventory_item", 2},
		{"?entity_type=inventory_item&entity_id=2", 1},
		{"?limit=1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/api/audit-logs"+tt.query, nil))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			var logs []models.AuditLog
			if err := json.Unmarshal(body, &logs); err != nil {
				t.Fatalf("Bad body %s: %v", body, err)
			}
			if len(logs) != tt.want {
				t.Errorf("Expected %d logs, got %d", tt.want, len(logs))
			}
		})
	}
}
