package negotiations

import (
	"time"

	contractsvc "stackyard-backend/internal/application/contracts"
	negsvc "stackyard-backend/internal/application/negotiations"
	"stackyard-backend/internal/middleware"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *negsvc.Service
}

// POST /api/v1/negotiations/propose-offer
func (h *Handlers) ProposeOffer(c *fiber.Ctx) error {
	var body struct {
		StackID     string   `json:"stack_id"`
		PricePerTon float64  `json:"price_per_ton"`
		Tons        *float64 `json:"tons"`
		Note        *string  `json:"note"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.StackID == "" || body.PricePerTon == 0 {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}

	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	offer, err := h.Service.Propose(c.Context(), negsvc.ProposeInput{
		Actor:       *actor,
		StackID:     body.StackID,
		PricePerTon: body.PricePerTon,
		Tons:        body.Tons,
		Note:        body.Note,
	})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Offer proposed successfully", offer, nil)
}

// POST /api/v1/negotiations/counter-offer
func (h *Handlers) CounterOffer(c *fiber.Ctx) error {
	in, ok := h.respondInput(c)
	if !ok {
		return nil
	}
	offer, err := h.Service.Counter(c.Context(), *in)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Counter offer sent", offer, nil)
}

// POST /api/v1/negotiations/reject-offer
func (h *Handlers) RejectOffer(c *fiber.Ctx) error {
	in, ok := h.respondInput(c)
	if !ok {
		return nil
	}
	offer, err := h.Service.Reject(c.Context(), *in)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Offer rejected", offer, nil)
}

// POST /api/v1/negotiations/accept-offer — creates the draft purchase order
// in the same transaction.
func (h *Handlers) AcceptOffer(c *fiber.Ctx) error {
	var body struct {
		ThreadID            string   `json:"thread_id"`
		Destination         string   `json:"destination"`
		DeliveryWindowStart *string  `json:"delivery_window_start"`
		DeliveryWindowEnd   *string  `json:"delivery_window_end"`
		MaxMoisturePercent  *float64 `json:"max_moisture_percent"`
		QualityNotes        *string  `json:"quality_notes"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	threadID, err := uuid.Parse(body.ThreadID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for thread_id", fiber.StatusBadRequest, nil)
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	windowStart, ok := parseDatePtr(c, body.DeliveryWindowStart, "delivery_window_start")
	if !ok {
		return nil
	}
	windowEnd, ok := parseDatePtr(c, body.DeliveryWindowEnd, "delivery_window_end")
	if !ok {
		return nil
	}

	offer, order, err := h.Service.Accept(c.Context(),
		negsvc.RespondInput{Actor: *actor, ThreadID: threadID},
		contractsvc.CreateDraftInput{
			Destination:         body.Destination,
			DeliveryWindowStart: windowStart,
			DeliveryWindowEnd:   windowEnd,
			MaxMoisturePercent:  body.MaxMoisturePercent,
			QualityNotes:        body.QualityNotes,
		})
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.SuccessCreated(c, "Offer accepted, draft contract created", fiber.Map{
		"offer": offer,
		"order": order,
	}, nil)
}

// GET /api/v1/negotiations/get-org-threads
func (h *Handlers) GetOrgThreads(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	threads, err := h.Service.ListThreads(c.Context(), actor.OrgID)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Threads fetched successfully", threads, nil)
}

// GET /api/v1/negotiations/get-thread/:thread_id
func (h *Handlers) GetThread(c *fiber.Ctx) error {
	threadID, err := uuid.Parse(c.Params("thread_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for thread_id", fiber.StatusBadRequest, nil)
	}
	offers, err := h.Service.GetThread(c.Context(), threadID)
	if err != nil {
		return response.EngineError(c, err)
	}
	return response.Success(c, "Thread fetched successfully", offers, nil)
}

// respondInput parses the shared counter/reject body. On failure the error
// response has already been written and ok is false.
func (h *Handlers) respondInput(c *fiber.Ctx) (*negsvc.RespondInput, bool) {
	var body struct {
		ThreadID    string   `json:"thread_id"`
		PricePerTon *float64 `json:"price_per_ton"`
		Tons        *float64 `json:"tons"`
		Note        *string  `json:"note"`
	}
	if err := c.BodyParser(&body); err != nil {
		_ = response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		return nil, false
	}
	threadID, err := uuid.Parse(body.ThreadID)
	if err != nil {
		_ = response.Error(c, "Invalid UUID format for thread_id", fiber.StatusBadRequest, nil)
		return nil, false
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		_ = response.Unauthorized(c, "Unauthorized")
		return nil, false
	}
	return &negsvc.RespondInput{
		Actor:       *actor,
		ThreadID:    threadID,
		PricePerTon: body.PricePerTon,
		Tons:        body.Tons,
		Note:        body.Note,
	}, true
}

func parseDatePtr(c *fiber.Ctx, s *string, field string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		_ = response.Error(c, "Invalid date format for "+field, fiber.StatusBadRequest, nil)
		return nil, false
	}
	return &t, true
}
