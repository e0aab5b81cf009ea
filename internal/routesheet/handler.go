package routesheet

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/pricing"
	"routesheet-backend/internal/store"
)

const dateLayout = "2006-01-02"

type StageResponse struct {
	Key   pricing.Stage   `json:"key"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

type AttachRequest struct {
	Stage           pricing.Stage `json:"stage"`
	InventoryItemID uint          `json:"inventory_item_id"`
	QuantityUsed    int           `json:"quantity_used"`
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "invalid id %q", c.Params("id"))
	}
	return uint(id), nil
}

// parseFilter reads employee_id, from and to (YYYY-MM-DD, both inclusive).
func parseFilter(c *fiber.Ctx) (store.RouteSheetFilter, error) {
	f := store.RouteSheetFilter{EmployeeID: uint(c.QueryInt("employee_id", 0))}
	if s := c.Query("from"); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return f, apperr.Invalid("from", "date must be YYYY-MM-DD")
		}
		f.From = d
	}
	if s := c.Query("to"); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return f, apperr.Invalid("to", "date must be YYYY-MM-DD")
		}
		f.To = d.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, apperr.Invalid("from", "from must not be after to")
	}
	return f, nil
}

// GET /api/stages
func StagesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := make([]StageResponse, 0, len(pricing.Stages()))
		for _, s := range pricing.Stages() {
			out = append(out, StageResponse{Key: s, Label: s.Label(), Price: s.Price()})
		}
		return c.JSON(out)
	}
}

// GET /api/route-sheets?employee_id=1&from=2025-01-01&to=2025-01-31
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := parseFilter(c)
		if err != nil {
			return err
		}
		list, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// GET /api/route-sheets/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		rs, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(rs)
	}
}

// POST /api/route-sheets
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		rs, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(rs)
	}
}

// PUT /api/route-sheets/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		rs, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(rs)
	}
}

// DELETE /api/route-sheets/:id
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/route-sheets/:id/materials
func ListMaterialsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		list, err := svc.Materials(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// POST /api/route-sheets/:id/materials
func AttachMaterialHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		var body AttachRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		link, err := svc.AttachMaterial(c.UserContext(), id, body.Stage, body.InventoryItemID, body.QuantityUsed)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	}
}

// DELETE /api/stage-materials/:id
func DetachMaterialHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		if err := svc.DetachMaterial(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
