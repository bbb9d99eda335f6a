package middleware

import (
	"net/http/httptest"
	"testing"

	"stackyard-backend/internal/application/directory"
	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupActorTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Org{}, &domain.User{}))

	app := fiber.New()
	app.Use(ResolveActor(&directory.Service{DB: db}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil {
			return c.SendString("anonymous")
		}
		return c.SendString(actor.Role)
	})
	return app, db
}

func TestResolveActor_NoHeaderPassesThrough(t *testing.T) {
	app, _ := setupActorTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestResolveActor_BadUUID(t *testing.T) {
	app, _ := setupActorTest(t)
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(ActorHeader, "not-a-uuid")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestResolveActor_UnknownUser(t *testing.T) {
	app, _ := setupActorTest(t)
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(ActorHeader, uuid.New().String())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestResolveActor_KnownUser(t *testing.T) {
	app, db := setupActorTest(t)
	user := &domain.User{Fullname: "Test", Email: "t@test.com", Role: constants.Manager}
	require.NoError(t, db.Create(user).Error)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(ActorHeader, user.UserID.String())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireActor(t *testing.T) {
	app := fiber.New()
	app.Get("/open", RequireActor(), func(c *fiber.Ctx) error { return c.SendString("ok") })
	resp, err := app.Test(httptest.NewRequest("GET", "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthorizePermission(t *testing.T) {
	newApp := func(role string) *fiber.App {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			SetActor(c, &directory.Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: role})
			return c.Next()
		})
		app.Post("/accept", AuthorizePermission(constants.AcceptOffer), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		return app
	}

	resp, err := newApp(constants.Manager).Test(httptest.NewRequest("POST", "/accept", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = newApp(constants.Admin).Test(httptest.NewRequest("POST", "/accept", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthorizePermission_Misconfigured(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		SetActor(c, &directory.Actor{UserID: uuid.New(), Role: constants.Admin})
		return c.Next()
	})
	app.Get("/x", AuthorizePermission("no_such_permission"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
