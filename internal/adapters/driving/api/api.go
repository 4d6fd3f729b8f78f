// Package api is the HTTP driving adapter. Handlers bind the fiber
// routes to the core services; authentication is an out-of-scope
// collaborator, so workspace and user identity arrive as headers set
// by the gateway in front of this service.
package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
)

const (
	headerWorkspace = "X-Workspace-ID"
	headerUser      = "X-User-ID"
)

// NewApp assembles the fiber application with all routes registered.
func NewApp(
	coordinator driving.SyncCoordinator,
	search driving.SearchService,
	items driven.ItemStore,
	embeddings driven.EmbeddingEnqueuer,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "hivemind",
	})
	app.Use(recover.New())

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	group := app.Group("/api")
	NewSyncHandler(coordinator).Register(group)
	NewSearchHandler(search).Register(group)
	NewWebhookHandler(items, embeddings).Register(group)

	return app
}

func userID(c fiber.Ctx) string {
	return c.Get(headerUser)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func internalError(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
