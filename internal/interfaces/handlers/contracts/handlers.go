package contracts

import (
	"time"

	contractsvc "stackyard-backend/internal/application/contracts"
	"stackyard-backend/internal/application/directory"
	"stackyard-backend/internal/domain"
	"stackyard-backend/internal/middleware"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *contractsvc.Service
}

// GET /api/v1/contracts/get-contract/:order_id
func (h *Handlers) GetContract(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("order_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for order_id", fiber.StatusBadRequest, nil)
	}
	snap, err := h.Service.GetContract(c.Context(), orderID)
	if err != nil {
		return response.EngineError(c, err)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if actor.OrgID != snap.Order.BuyerOrgID && actor.OrgID != snap.Order.SellerOrgID {
		return response.Error(c, "Organization is not a party to this contract", fiber.StatusForbidden, nil)
	}
	return response.Success(c, "Contract fetched successfully", snap, nil)
}

// POST /api/v1/contracts/sign-contract
func (h *Handlers) SignContract(c *fiber.Ctx) error {
	var body struct {
		OrderID        string  `json:"order_id"`
		Side           string  `json:"side"`
		TypedName      string  `json:"typed_name"`
		SignatureImage *string `json:"signature_image"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for order_id", fiber.StatusBadRequest, nil)
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	sig, err := h.Service.Sign(c.Context(), contractsvc.SignInput{
		OrderID:        orderID,
		Side:           body.Side,
		SignerUserID:   actor.UserID,
		SignerOrgID:    actor.OrgID,
		TypedName:      body.TypedName,
		SignatureImage: body.SignatureImage,
		ActorOrgCode:   orgCodePtr(actor.OrgCode),
	})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Contract signed", sig, nil)
}

// POST /api/v1/contracts/complete-contract
func (h *Handlers) CompleteContract(c *fiber.Ctx) error {
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for order_id", fiber.StatusBadRequest, nil)
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	order, err := h.Service.Complete(c.Context(), orderID, orgCodePtr(actor.OrgCode))
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Contract completed", order, nil)
}

// GET /api/v1/contracts/get-active-contracts
func (h *Handlers) GetActiveContracts(c *fiber.Ctx) error {
	actor, filters, ok := listQuery(c)
	if !ok {
		return nil
	}
	orders, err := h.Service.ListActiveContracts(c.Context(), actor.OrgID, filters)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Contracts fetched successfully", orders, nil)
}

// GET /api/v1/contracts/get-completed-contracts
func (h *Handlers) GetCompletedContracts(c *fiber.Ctx) error {
	actor, filters, ok := listQuery(c)
	if !ok {
		return nil
	}
	orders, err := h.Service.ListCompletedContracts(c.Context(), actor.OrgID, filters)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Contracts fetched successfully", orders, nil)
}

func listQuery(c *fiber.Ctx) (*directory.Actor, contractsvc.ListFilters, bool) {
	actor := middleware.GetActor(c)
	if actor == nil {
		_ = response.Unauthorized(c, "Unauthorized")
		return nil, contractsvc.ListFilters{}, false
	}

	filters := contractsvc.ListFilters{}
	switch side := c.Query("side"); side {
	case "", domain.SideBuyer, domain.SideSeller:
		filters.Side = side
	default:
		_ = response.Error(c, "side must be buyer or seller", fiber.StatusBadRequest, nil)
		return nil, filters, false
	}
	if from := c.Query("window_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			_ = response.Error(c, "Invalid date format for window_from", fiber.StatusBadRequest, nil)
			return nil, filters, false
		}
		filters.WindowFrom = &t
	}
	if to := c.Query("window_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			_ = response.Error(c, "Invalid date format for window_to", fiber.StatusBadRequest, nil)
			return nil, filters, false
		}
		filters.WindowTo = &t
	}
	return actor, filters, true
}

func orgCodePtr(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}
