package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/inventory"
	"routesheet-backend/internal/store"
)

const dateLayout = "2006-01-02"

// AlertSource lists the items that need restocking.
type AlertSource interface {
	Alerts(ctx context.Context) ([]inventory.ItemResponse, error)
}

// GET /api/dashboard/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

// GET /api/dashboard/weekly
func WeeklyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		w, err := svc.Weekly(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(w)
	}
}

// GET /api/dashboard/earnings-chart?period=daily&count=7
func EarningsChartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, err := ParsePeriod(c.Query("period"))
		if err != nil {
			return err
		}
		count := 0
		if c.Query("count") != "" {
			count = c.QueryInt("count", -1)
			if count <= 0 {
				return apperr.Invalid("count", "count must be a positive number")
			}
		}
		chart, err := svc.EarningsChart(c.UserContext(), period, count)
		if err != nil {
			return err
		}
		return c.JSON(chart)
	}
}

// GET /api/dashboard/stock-alerts
func StockAlertsHandler(src AlertSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		alerts, err := src.Alerts(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(alerts)
	}
}

// GET /api/dashboard/export?from=2025-01-01&to=2025-01-31
func ExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f store.RouteSheetFilter
		if s := c.Query("from"); s != "" {
			d, err := time.ParseInLocation(dateLayout, s, time.Local)
			if err != nil {
				return apperr.Invalid("from", "date must be YYYY-MM-DD")
			}
			f.From = d
		}
		if s := c.Query("to"); s != "" {
			d, err := time.ParseInLocation(dateLayout, s, time.Local)
			if err != nil {
				return apperr.Invalid("to", "date must be YYYY-MM-DD")
			}
			f.To = d.AddDate(0, 0, 1)
		}

		buf, err := svc.Export(c.UserContext(), f)
		if err != nil {
			return err
		}

		filename := fmt.Sprintf("production-%s.xlsx", svc.now().Format(dateLayout))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		return c.Send(buf.Bytes())
	}
}
