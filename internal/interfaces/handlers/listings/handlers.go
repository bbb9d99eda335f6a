package listings

import (
	listsvc "stackyard-backend/internal/application/listings"
	"stackyard-backend/internal/middleware"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *listsvc.Service
}

// POST /api/v1/listings/create-listing
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body struct {
		StackID           string   `json:"stack_id"`
		Product           string   `json:"product"`
		Cutting           *string  `json:"cutting"`
		BaleType          *string  `json:"bale_type"`
		AskingPricePerTon float64  `json:"asking_price_per_ton"`
		EstimatedTons     float64  `json:"estimated_tons"`
		MoisturePercent   *float64 `json:"moisture_percent"`
		PriceFirm         bool     `json:"price_firm"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	listing, err := h.Service.CreateListing(c.Context(), listsvc.CreateListingInput{
		StackID:           body.StackID,
		SellerOrgID:       actor.OrgID,
		Product:           body.Product,
		Cutting:           body.Cutting,
		BaleType:          body.BaleType,
		AskingPricePerTon: body.AskingPricePerTon,
		EstimatedTons:     body.EstimatedTons,
		MoisturePercent:   body.MoisturePercent,
		PriceFirm:         body.PriceFirm,
	})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings/get-listing/:stack_id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	listing, err := h.Service.GetListingByStackID(c.Context(), c.Params("stack_id"))
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// GET /api/v1/listings/get-org-listings
func (h *Handlers) GetOrgListings(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	listings, err := h.Service.GetOrgListings(c.Context(), actor.OrgID)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, nil)
}

// GET /api/v1/listings/get-available-listings
func (h *Handlers) GetAvailableListings(c *fiber.Ctx) error {
	listings, err := h.Service.GetAvailableListings(c.Context())
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, nil)
}
