package inventory

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

const maxImportSize = 5 << 20

type AdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "invalid id %q", c.Params("id"))
	}
	return uint(id), nil
}

// GET /api/inventory?status=low
func ListItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := models.StockStatus(c.Query("status"))
		switch status {
		case "", models.StockOK, models.StockLow, models.StockCritical:
		default:
			return apperr.Invalid("status", "unknown status %q", status)
		}
		items, err := svc.List(c.UserContext(), status)
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

// GET /api/inventory/:id
func GetItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		it, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(it)
	}
}

// POST /api/inventory
func CreateItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		it, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(it)
	}
}

// PUT /api/inventory/:id
func UpdateItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		var body ItemInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		it, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(it)
	}
}

// DELETE /api/inventory/:id
func DeleteItemHandler(svc *Service) fiber.Handler {
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

// POST /api/inventory/:id/adjust
func AdjustHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		var body AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		it, err := svc.Adjust(c.UserContext(), id, body.Delta, body.Reason)
		if err != nil {
			return err
		}
		return c.JSON(it)
	}
}

// GET /api/inventory/:id/logs
func ItemLogsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		if _, err := svc.Get(c.UserContext(), id); err != nil {
			return err
		}
		logs, err := svc.Logs(c.UserContext(), store.LogFilter{
			InventoryItemID: id,
			Limit:           c.QueryInt("limit", 0),
		})
		if err != nil {
			return err
		}
		return c.JSON(logs)
	}
}

// GET /api/inventory-logs?route_sheet_id=1&inventory_item_id=2&limit=100
func ListLogsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logs, err := svc.Logs(c.UserContext(), store.LogFilter{
			InventoryItemID: uint(c.QueryInt("inventory_item_id", 0)),
			RouteSheetID:    uint(c.QueryInt("route_sheet_id", 0)),
			Limit:           c.QueryInt("limit", 0),
		})
		if err != nil {
			return err
		}
		return c.JSON(logs)
	}
}

// POST /api/inventory/import (multipart, field "file", .xlsx)
func ImportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Invalid("file", "file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Invalid("file", "only .xlsx files can be imported")
		}
		if fileHeader.Size > maxImportSize {
			return apperr.Invalid("file", "file is larger than %d bytes", maxImportSize)
		}

		file, err := fileHeader.Open()
		if err != nil {
			return err
		}
		defer file.Close()

		rows, skips, err := ParseImportSheet(file)
		if err != nil {
			return err
		}
		res, err := svc.Import(c.UserContext(), rows, skips)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}
