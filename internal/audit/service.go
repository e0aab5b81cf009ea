// Package audit keeps an append-only trail of changes to employees, route
// sheets, inventory items and stage materials.
package audit

import (
	"context"
	"encoding/json"

	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

const (
	EntityEmployee      = "employee"
	EntityRouteSheet    = "route_sheet"
	EntityInventoryItem = "inventory_item"
	EntityStageMaterial = "stage_material"
)

// Actor is the operator a change is attributed to.
type Actor struct {
	ID   uint
	Name string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

type Entry struct {
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Write appends one audit row. Pass the transaction's store so the row
// commits or rolls back with the change it describes.
func Write(ctx context.Context, s store.AuditStore, e Entry) error {
	row := models.AuditLog{
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		BeforeData:  toJSON(e.Before),
		AfterData:   toJSON(e.After),
	}
	if a, ok := ActorFrom(ctx); ok {
		id := a.ID
		row.OperatorID = &id
		row.OperatorName = a.Name
	}
	return s.AppendAuditLog(ctx, &row)
}

// jsonb rejects an empty string, so absent data is stored as null.
func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
