// Package webapi exposes the sync and community services over HTTP.
package webapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	communitysvc "github.com/nuno2msilva/pocket-keeper/pkg/service/community"
	syncsvc "github.com/nuno2msilva/pocket-keeper/pkg/service/sync"
)

// NewApp assembles the fiber application with all routes registered.
func NewApp(cfg *config.App, syncService *syncsvc.Service, communityService *communitysvc.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "pocket-keeper",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Default to 500 if status code cannot be determined
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(Response{Status: fiber.StatusOK, Message: "pocket-keeper is up"})
	})

	SyncRoutes(app, syncService, &cfg.Jwt)
	CommunityRoutes(app, communityService, &cfg.Jwt)

	return app
}
