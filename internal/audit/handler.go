package audit

import (
	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

const defaultListLimit = 200

// GET /api/audit-logs?entity_type=route_sheet&entity_id=1&limit=50
func ListHandler(s store.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := store.AuditFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   uint(c.QueryInt("entity_id", 0)),
			Limit:      c.QueryInt("limit", defaultListLimit),
		}
		if f.Limit <= 0 || f.Limit > 1000 {
			f.Limit = defaultListLimit
		}

		logs, err := s.ListAuditLogs(c.UserContext(), f)
		if err != nil {
			return err
		}
		if logs == nil {
			logs = []models.AuditLog{}
		}
		return c.JSON(logs)
	}
}
