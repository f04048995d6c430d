package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/middleware"
	syncsvc "github.com/nuno2msilva/pocket-keeper/pkg/service/sync"
)

// PushRequest wraps a batch of local mutations.
type PushRequest struct {
	Items []dto.PushItem `json:"items" validate:"required,dive"`
}

// SyncRoutes registers the owner-scoped sync endpoints.
func SyncRoutes(app *fiber.App, svc *syncsvc.Service, cfg *config.Jwt) {
	group := app.Group("/api/v1/sync", middleware.Protected(cfg))
	group.Post("/push", Push(svc))
	group.Get("/pull", Pull(svc))
	group.Get("/full", FullSync(svc))
	group.Get("/status", SyncStatus(svc))
}

// Push applies a batch of client mutations in one transaction and returns
// per-item results aligned to input order.
func Push(svc *syncsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		input, err := BindAndValidate[PushRequest](c)
		if err != nil {
			return nil // Error already written by helper
		}
		results, err := svc.Push(c.Context(), ownerID, input.Items)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Push failed", err.Error())
		}
		return c.JSON(results)
	}
}

// Pull returns every record changed after the since query parameter
// (RFC 3339), ordered for safe client replay.
func Pull(svc *syncsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		raw := c.Query("since")
		if raw == "" {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Missing since parameter", "use /sync/full for a complete snapshot")
		}
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			if since, err = time.Parse(time.RFC3339, raw); err != nil {
				return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid since parameter", err.Error())
			}
		}
		resp, err := svc.Pull(c.Context(), ownerID, since)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Pull failed", err.Error())
		}
		return c.JSON(resp)
	}
}

// FullSync returns the owner's complete dataset for bootstrap.
func FullSync(svc *syncsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		resp, err := svc.Full(c.Context(), ownerID)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Full sync failed", err.Error())
		}
		return c.JSON(resp)
	}
}

// SyncStatus reports per-collection counts and last-modified stamps.
func SyncStatus(svc *syncsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		status, err := svc.Status(c.Context(), ownerID)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Status failed", err.Error())
		}
		return c.JSON(status)
	}
}
