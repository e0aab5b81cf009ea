package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/auth"
	"routesheet-backend/internal/config"
	"routesheet-backend/internal/dashboard"
	"routesheet-backend/internal/database"
	"routesheet-backend/internal/employee"
	"routesheet-backend/internal/inventory"
	"routesheet-backend/internal/logger"
	"routesheet-backend/internal/routesheet"
	"routesheet-backend/internal/store"
	"routesheet-backend/internal/store/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Development: cfg.IsDevelopment(), Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}

	ledger := inventory.NewLedger(st, log)
	inventorySvc := inventory.NewService(st, ledger, log)
	routeSheetSvc := routesheet.NewService(st, ledger, log, cfg.RestockOnRouteSheetDelete)
	employeeSvc := employee.NewService(st, log)
	dashboardSvc := dashboard.NewService(st, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.ErrorHandler(),
		BodyLimit:    8 * 1024 * 1024,
	})

	// outermost, so recovered panics are logged with the request line
	app.Use(logger.Middleware(log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "store": cfg.StoreDriver})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(st))
	api.Post("/auth/login", auth.LoginHandler(st, cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	if cfg.AuthEnabled {
		protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
		protected.Get("/auth/me", auth.MeHandler(st))
	}

	protected.Get("/stages", routesheet.StagesHandler())

	// Employees
	protected.Get("/employees", employee.ListHandler(employeeSvc))
	protected.Post("/employees", employee.CreateHandler(employeeSvc))
	protected.Get("/employees/:id", employee.GetHandler(employeeSvc))
	protected.Put("/employees/:id", employee.UpdateHandler(employeeSvc))
	protected.Delete("/employees/:id", employee.DeleteHandler(employeeSvc))

	// Inventory
	protected.Get("/inventory", inventory.ListItemsHandler(inventorySvc))
	protected.Post("/inventory", inventory.CreateItemHandler(inventorySvc))
	protected.Post("/inventory/import", inventory.ImportHandler(inventorySvc))
	protected.Get("/inventory/:id", inventory.GetItemHandler(inventorySvc))
	protected.Put("/inventory/:id", inventory.UpdateItemHandler(inventorySvc))
	protected.Delete("/inventory/:id", inventory.DeleteItemHandler(inventorySvc))
	protected.Post("/inventory/:id/adjust", inventory.AdjustHandler(inventorySvc))
	protected.Get("/inventory/:id/logs", inventory.ItemLogsHandler(inventorySvc))
	protected.Get("/inventory-logs", inventory.ListLogsHandler(inventorySvc))

	// Route sheets
	protected.Get("/route-sheets", routesheet.ListHandler(routeSheetSvc))
	protected.Post("/route-sheets", routesheet.CreateHandler(routeSheetSvc))
	protected.Get("/route-sheets/:id", routesheet.GetHandler(routeSheetSvc))
	protected.Put("/route-sheets/:id", routesheet.UpdateHandler(routeSheetSvc))
	protected.Delete("/route-sheets/:id", routesheet.DeleteHandler(routeSheetSvc))
	protected.Get("/route-sheets/:id/materials", routesheet.ListMaterialsHandler(routeSheetSvc))
	protected.Post("/route-sheets/:id/materials", routesheet.AttachMaterialHandler(routeSheetSvc))
	protected.Delete("/stage-materials/:id", routesheet.DetachMaterialHandler(routeSheetSvc))

	// Dashboard
	protected.Get("/dashboard/stats", dashboard.StatsHandler(dashboardSvc))
	protected.Get("/dashboard/weekly", dashboard.WeeklyHandler(dashboardSvc))
	protected.Get("/dashboard/earnings-chart", dashboard.EarningsChartHandler(dashboardSvc))
	protected.Get("/dashboard/stock-alerts", dashboard.StockAlertsHandler(inventorySvc))
	protected.Get("/dashboard/export", dashboard.ExportHandler(dashboardSvc))

	protected.Get("/audit-logs", audit.ListHandler(st))

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return memory.New(), nil
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return database.NewStore(db), nil
}
