package webapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/middleware"
	communitysvc "github.com/nuno2msilva/pocket-keeper/pkg/service/community"
)

// CommunityRoutes registers the crowd-sourced directory endpoints.
func CommunityRoutes(app *fiber.App, svc *communitysvc.Service, cfg *config.Jwt) {
	group := app.Group("/api/v1/community", middleware.Protected(cfg))
	group.Post("/contribute", Contribute(svc))
	group.Post("/sync-contributions", SyncContributions(svc))
	group.Get("/pull", CommunityPull(svc))
	group.Get("/search", CommunitySearch(svc))
}

// Contribute shares one entry into the community directory.
func Contribute(svc *communitysvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		input, err := BindAndValidate[dto.Contribution](c)
		if err != nil {
			return nil // Error already written by helper
		}
		result, err := svc.Contribute(c.Context(), ownerID, *input)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Contribution failed", err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

// SyncContributions bulk-shares every solidified product and merchant of the
// owner and returns how many rows were touched.
func SyncContributions(svc *communitysvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		summary, err := svc.SyncContributions(c.Context(), ownerID)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Bulk contribution failed", err.Error())
		}
		return c.JSON(summary)
	}
}

// CommunityPull returns trusted entries the owner does not already have.
func CommunityPull(svc *communitysvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := middleware.OwnerID(c)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		pull, err := svc.Pull(c.Context(), ownerID)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Community pull failed", err.Error())
		}
		return c.JSON(pull)
	}
}

// CommunitySearch looks up directory entries by barcode, NIF or fuzzy name.
func CommunitySearch(svc *communitysvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := middleware.OwnerID(c); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Unauthorized", err.Error())
		}
		kind := dto.ContributionKind(c.Query("kind"))
		if kind != dto.ContributeProduct && kind != dto.ContributeMerchant {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid kind parameter", "kind must be product or merchant")
		}
		result, err := svc.Search(c.Context(), kind, c.Query("q"), c.Query("barcode"), c.Query("nif"))
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Search failed", err.Error())
		}
		return c.JSON(result)
	}
}
