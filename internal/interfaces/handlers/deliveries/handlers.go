package deliveries

import (
	"time"

	delsvc "stackyard-backend/internal/application/deliveries"
	"stackyard-backend/internal/middleware"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *delsvc.Service
}

// POST /api/v1/deliveries/log-delivery
func (h *Handlers) LogDelivery(c *fiber.Ctx) error {
	var body struct {
		OrderID        string  `json:"order_id"`
		GrossWeightLbs float64 `json:"gross_weight_lbs"`
		TareWeightLbs  float64 `json:"tare_weight_lbs"`
		BaleCount      int     `json:"bale_count"`
		WetBaleCount   int     `json:"wet_bale_count"`
		Note           *string `json:"note"`
		DeliveredAt    *string `json:"delivered_at"`
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

	var deliveredAt time.Time
	if body.DeliveredAt != nil && *body.DeliveredAt != "" {
		deliveredAt, err = time.Parse(time.RFC3339, *body.DeliveredAt)
		if err != nil {
			return response.Error(c, "Invalid timestamp for delivered_at", fiber.StatusBadRequest, nil)
		}
	}

	load, err := h.Service.LogDelivery(c.Context(), delsvc.LogDeliveryInput{
		OrderID:          orderID,
		GrossWeightLbs:   body.GrossWeightLbs,
		TareWeightLbs:    body.TareWeightLbs,
		BaleCount:        body.BaleCount,
		WetBaleCount:     body.WetBaleCount,
		Note:             body.Note,
		RecordedByUserID: actor.UserID,
		DeliveredAt:      deliveredAt,
		ActorOrgCode:     orgCodePtr(actor.OrgCode),
	})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Delivery logged successfully", load, nil)
}

// POST /api/v1/deliveries/revise-delivery
func (h *Handlers) ReviseDelivery(c *fiber.Ctx) error {
	var body struct {
		LoadID         string  `json:"load_id"`
		GrossWeightLbs float64 `json:"gross_weight_lbs"`
		TareWeightLbs  float64 `json:"tare_weight_lbs"`
		BaleCount      int     `json:"bale_count"`
		WetBaleCount   int     `json:"wet_bale_count"`
		Note           *string `json:"note"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	loadID, err := uuid.Parse(body.LoadID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for load_id", fiber.StatusBadRequest, nil)
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	load, err := h.Service.ReviseDelivery(c.Context(), delsvc.ReviseDeliveryInput{
		LoadID:          loadID,
		GrossWeightLbs:  body.GrossWeightLbs,
		TareWeightLbs:   body.TareWeightLbs,
		BaleCount:       body.BaleCount,
		WetBaleCount:    body.WetBaleCount,
		Note:            body.Note,
		RevisedByUserID: actor.UserID,
		ActorOrgCode:    orgCodePtr(actor.OrgCode),
	})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Delivery revised successfully", load, nil)
}

// GET /api/v1/deliveries/get-deliveries/:order_id
func (h *Handlers) GetDeliveries(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("order_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for order_id", fiber.StatusBadRequest, nil)
	}
	loads, err := h.Service.ListDeliveries(c.Context(), orderID)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Deliveries fetched successfully", loads, nil)
}

func orgCodePtr(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}
