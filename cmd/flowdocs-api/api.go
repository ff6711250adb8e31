// Package main provides the workflow library API server implementation.
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/flowdocs/flowdocs/pkg/eventbus"
	"github.com/flowdocs/flowdocs/pkg/ratelimit"
	"github.com/flowdocs/flowdocs/pkg/storage"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/flowdocs/flowdocs/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/static"
)

type API struct {
	logger     *slog.Logger
	store      store.Store
	indexer    *store.Indexer
	root       *storage.Root
	eventBus   eventbus.EventBus
	limiter    ratelimit.Limiter
	adminToken string
	validate   *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	s store.Store,
	indexer *store.Indexer,
	root *storage.Root,
	eventBus eventbus.EventBus,
	limiter ratelimit.Limiter,
	adminToken string,
) *API {
	return &API{
		logger:     logger,
		store:      s,
		indexer:    indexer,
		root:       root,
		eventBus:   eventBus,
		limiter:    limiter,
		adminToken: adminToken,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.store, a.indexer, a.root, a.eventBus, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/health", handlers.HealthCheck)

	limited := web.RateLimit(a.limiter, a.logger)
	admin := web.AdminOnly(a.adminToken, a.logger)

	api := app.Group("/api")
	api.Get("/stats", handlers.GetStats)
	api.Get("/workflows", handlers.SearchWorkflows)
	api.Get("/workflows/category/:category", handlers.SearchByCategory)
	api.Get("/workflows/:filename", handlers.GetWorkflow, limited)
	api.Get("/workflows/:filename/download", handlers.DownloadWorkflow, limited)
	api.Get("/workflows/:filename/diagram", handlers.GetDiagram, limited)
	api.Delete("/workflows/:filename", handlers.DeleteWorkflow, limited)
	api.Post("/workflows/upload", handlers.UploadWorkflow, limited)
	api.Post("/workflows/upload-json", handlers.UploadWorkflowJSON, limited)
	api.Post("/reindex", handlers.Reindex, limited, admin)
	api.Get("/categories", handlers.GetCategories)
	api.Get("/category-mappings", handlers.GetCategoryMappings)
	api.Get("/integrations", handlers.GetIntegrations)
	api.Post("/purchase-request", handlers.SubmitPurchaseRequest, limited)

	// Browser UI, when bundled next to the binary.
	if _, err := os.Stat("./static"); err == nil {
		app.Get("/*", static.New("./static"))
	}

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
