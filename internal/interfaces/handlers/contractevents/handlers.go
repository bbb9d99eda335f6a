package contractevents

import (
	cesvc "stackyard-backend/internal/application/contractevents"
	"stackyard-backend/internal/middleware"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *cesvc.Service
}

// GET /api/v1/contract-events/get-org-events
func (h *Handlers) GetOrgEvents(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	events, err := h.Service.GetOrgContractEvents(c.Context(), actor.OrgID)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Events fetched successfully", events, nil)
}
