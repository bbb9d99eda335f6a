package negotiations

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	contractsvc "stackyard-backend/internal/application/contracts"
	"stackyard-backend/internal/application/directory"
	negsvc "stackyard-backend/internal/application/negotiations"
	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/domain"
	"stackyard-backend/internal/middleware"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupNegotiationsApp wires the handlers behind a switchable actor so one
// app can play both sides of a thread.
func setupNegotiationsApp(t *testing.T) (*fiber.App, *gorm.DB, func(*directory.Actor)) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Listing{}, &domain.NegotiationOffer{}, &domain.PurchaseOrder{},
		&domain.ContractAllocation{}, &domain.SignatureEvent{}, &domain.ContractEvent{},
	))

	svc := &negsvc.Service{DB: db, Contracts: &contractsvc.Service{DB: db}}
	h := &Handlers{Service: svc}

	var current *directory.Actor
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if current != nil {
			middleware.SetActor(c, current)
		}
		return c.Next()
	})
	app.Post("/propose-offer", h.ProposeOffer)
	app.Post("/counter-offer", h.CounterOffer)
	app.Post("/reject-offer", h.RejectOffer)
	app.Post("/accept-offer", h.AcceptOffer)
	app.Get("/get-org-threads", h.GetOrgThreads)
	app.Get("/get-thread/:thread_id", h.GetThread)

	return app, db, func(a *directory.Actor) { current = a }
}

func postBody(t *testing.T, app *fiber.App, path string, payload map[string]interface{}) (int, map[string]interface{}) {
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestNegotiationLifecycle_Handlers(t *testing.T) {
	app, db, setActor := setupNegotiationsApp(t)

	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&domain.Listing{
		StackID: "STK-1001", SellerOrgID: sellerOrg, Product: "alfalfa",
		AskingPricePerTon: 230, EstimatedTons: 120, Status: domain.ListingAvailable,
	}).Error)

	buyer := &directory.Actor{UserID: uuid.New(), OrgID: buyerOrg, OrgCode: "BUY", Role: constants.Manager}
	sellerAdmin := &directory.Actor{UserID: uuid.New(), OrgID: sellerOrg, OrgCode: "SEL", Role: constants.Admin}

	setActor(buyer)
	status, body := postBody(t, app, "/propose-offer", map[string]interface{}{
		"stack_id": "STK-1001", "price_per_ton": 215, "tons": 100,
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "success", body["status"])
	threadID := body["data"].(map[string]interface{})["thread_id"].(string)

	// The buyer cannot answer its own offer.
	status, _ = postBody(t, app, "/counter-offer", map[string]interface{}{
		"thread_id": threadID, "price_per_ton": 210,
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	setActor(sellerAdmin)
	status, body = postBody(t, app, "/counter-offer", map[string]interface{}{
		"thread_id": threadID, "price_per_ton": 225,
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 225.0, body["data"].(map[string]interface{})["price_per_ton"])

	setActor(buyer)
	status, _ = postBody(t, app, "/counter-offer", map[string]interface{}{
		"thread_id": threadID, "price_per_ton": 220,
	})
	require.Equal(t, fiber.StatusCreated, status)

	setActor(sellerAdmin)
	status, body = postBody(t, app, "/accept-offer", map[string]interface{}{
		"thread_id":             threadID,
		"destination":           "Yard 4, Twin Falls ID",
		"delivery_window_start": "2026-09-01",
		"delivery_window_end":   "2026-10-15",
	})
	require.Equal(t, fiber.StatusCreated, status)
	data := body["data"].(map[string]interface{})
	offer := data["offer"].(map[string]interface{})
	order := data["order"].(map[string]interface{})
	assert.Equal(t, "accepted", offer["status"])
	assert.Equal(t, "draft", order["status"])
	assert.Equal(t, 220.0, order["price_per_ton"])
	assert.Equal(t, 100.0, order["contracted_tons"])

	// Thread is closed now.
	status, _ = postBody(t, app, "/reject-offer", map[string]interface{}{"thread_id": threadID})
	assert.Equal(t, fiber.StatusConflict, status)

	// Full chain is visible to either party.
	resp, err := app.Test(httptest.NewRequest("GET", "/get-thread/"+threadID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var threadBody map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&threadBody))
	assert.Len(t, threadBody["data"].([]interface{}), 3)
}

func TestAcceptOffer_Handler_ManagerForbidden(t *testing.T) {
	app, db, setActor := setupNegotiationsApp(t)

	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&domain.Listing{
		StackID: "STK-1001", SellerOrgID: sellerOrg, Product: "alfalfa",
		AskingPricePerTon: 230, EstimatedTons: 120, Status: domain.ListingAvailable,
	}).Error)

	setActor(&directory.Actor{UserID: uuid.New(), OrgID: buyerOrg, OrgCode: "BUY", Role: constants.Manager})
	status, body := postBody(t, app, "/propose-offer", map[string]interface{}{
		"stack_id": "STK-1001", "price_per_ton": 215,
	})
	require.Equal(t, fiber.StatusCreated, status)
	threadID := body["data"].(map[string]interface{})["thread_id"].(string)

	setActor(&directory.Actor{UserID: uuid.New(), OrgID: sellerOrg, OrgCode: "SEL", Role: constants.Manager})
	status, _ = postBody(t, app, "/accept-offer", map[string]interface{}{
		"thread_id": threadID, "destination": "Yard 4",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestCounterOffer_Handler_BadInput(t *testing.T) {
	app, _, setActor := setupNegotiationsApp(t)
	setActor(&directory.Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: constants.Manager})

	status, _ := postBody(t, app, "/counter-offer", map[string]interface{}{
		"thread_id": "not-a-uuid",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postBody(t, app, "/counter-offer", map[string]interface{}{
		"thread_id": uuid.New().String(),
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAcceptOffer_Handler_BadWindowDate(t *testing.T) {
	app, _, setActor := setupNegotiationsApp(t)
	setActor(&directory.Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: constants.Admin})

	status, _ := postBody(t, app, "/accept-offer", map[string]interface{}{
		"thread_id":             uuid.New().String(),
		"delivery_window_start": "09/01/2026",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}
