package FiberConfig

import (
	"fmt"
	"log"

	"SpareLink/Calls"
	"SpareLink/Config"
	"SpareLink/Controllers"
	"SpareLink/Inventory"
	"SpareLink/Models"
	"SpareLink/Requests"
	"SpareLink/Returns"
	"SpareLink/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"
)

// Services bundles the engine services the routes dispatch to.
type Services struct {
	Requests *Requests.Service
	Returns  *Returns.Service
	Calls    *Calls.Service
}

func NewServices(db *gorm.DB, cfg Config.Config) Services {
	movements := Inventory.NewMovementLog()
	return Services{
		Requests: Requests.NewService(db, movements),
		Returns:  Returns.NewService(db, movements),
		Calls:    Calls.NewService(db, movements, cfg.TATSLAMinutes),
	}
}

func SetupRoutes(app *fiber.App, db *gorm.DB, svc Services, auth *middleware.Auth, logDir string) {
	ingest := Controllers.NewIngest()
	inventoryHandler := Controllers.NewInventoryHandler(db)
	requestHandler := Controllers.NewRequestHandler(svc.Requests, ingest)
	returnHandler := Controllers.NewReturnHandler(svc.Returns, ingest)
	callHandler := Controllers.NewCallHandler(svc.Calls, ingest)
	logsHandler := Controllers.NewLogsHandler(logDir)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API group
	api := app.Group("/api", auth.Verify())

	// Ledger and movement log
	api.Get("/inventory", inventoryHandler.ListStock)
	api.Get("/inventory/:spareId", inventoryHandler.GetQuantities)
	api.Get("/movements", inventoryHandler.GetMovements)
	api.Get("/movements/export", inventoryHandler.ExportMovements)

	// Spare requests
	approvers := auth.Verify(Models.RoleServiceCenter, Models.RoleRSM)
	requests := api.Group("/requests")
	requests.Post("/", auth.Verify(Models.RoleTechnician, Models.RoleServiceCenter), requestHandler.Submit)
	requests.Get("/", requestHandler.List)
	requests.Get("/:id", requestHandler.Get)
	requests.Post("/:id/approve", approvers, requestHandler.Approve)
	requests.Post("/:id/reject", approvers, requestHandler.Reject)

	// Returns
	receivers := auth.Verify(Models.RoleServiceCenter, Models.RoleRSM)
	returns := api.Group("/returns")
	returns.Post("/", auth.Verify(Models.RoleTechnician, Models.RoleServiceCenter), returnHandler.Submit)
	returns.Get("/", returnHandler.List)
	returns.Get("/:id", returnHandler.Get)
	returns.Post("/:id/receive", receivers, returnHandler.Receive)
	returns.Post("/:id/verify", receivers, returnHandler.Verify)
	returns.Post("/:id/reject", returnHandler.Reject)

	// Calls, consumption and TAT
	calls := api.Group("/calls", auth.Verify(Models.RoleTechnician, Models.RoleServiceCenter))
	calls.Post("/:callId/consumption", callHandler.RecordConsumption)
	calls.Post("/:callId/tat/start", callHandler.StartTAT)
	calls.Post("/:callId/holds", callHandler.OpenHold)
	calls.Post("/:callId/close", callHandler.CloseCall)
	calls.Get("/:callId/tat", callHandler.Summary)
	api.Post("/holds/:holdId/close", auth.Verify(Models.RoleTechnician, Models.RoleServiceCenter), callHandler.CloseHold)

	// Logs API routes
	admin := auth.Verify(Models.RoleAdmin)
	api.Get("/logs", admin, logsHandler.GetLogs)
	api.Get("/logs/stats", admin, logsHandler.GetLogStats)
}

// NewApp builds the fiber app with the middleware stack and all routes.
func NewApp(db *gorm.DB, cfg Config.Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "SpareLink",
	})
	app.Use(middleware.RequestLogger(cfg.LogDir))
	app.Use(middleware.ErrorLogger(cfg.LogDir))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: cfg.AllowOrigins != "*",
		MaxAge:           300,
	}))

	SetupRoutes(app, db, svc, middleware.NewAuth(cfg.JWTSecret), cfg.LogDir)
	return app
}

func FiberConfig(db *gorm.DB, cfg Config.Config, svc Services) error {
	fmt.Println("Server Up...")
	app := NewApp(db, cfg, svc)
	log.Printf("Listening on :%s", cfg.Port)
	return app.Listen(":" + cfg.Port)
}
