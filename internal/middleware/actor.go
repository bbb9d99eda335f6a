package middleware

import (
	"stackyard-backend/internal/application/directory"
	"stackyard-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const actorLocal = "actor"

// ActorHeader carries the authenticated user's ID, set by the gateway in
// front of this service. Authentication itself happens upstream.
const ActorHeader = "X-User-Id"

// ResolveActor resolves the request's actor through the identity directory
// and stores the snapshot in Locals. Requests without the header pass through
// unresolved; RequireActor gates the protected routes.
func ResolveActor(dir *directory.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(ActorHeader)
		if raw == "" {
			return c.Next()
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			return response.Error(c, "Invalid UUID format for user id", fiber.StatusBadRequest, nil)
		}
		actor, err := dir.Resolve(c.Context(), userID)
		if err != nil {
			return response.Unauthorized(c, "Unknown user")
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

// RequireActor ensures an actor was resolved. Returns 401 with the standard
// error format if not.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetActor(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetActor returns the resolved actor from Locals (nil if none).
func GetActor(c *fiber.Ctx) *directory.Actor {
	actor, _ := c.Locals(actorLocal).(*directory.Actor)
	return actor
}

// SetActor stores an actor in Locals. Used by tests to inject an identity
// without the directory round-trip.
func SetActor(c *fiber.Ctx, actor *directory.Actor) {
	c.Locals(actorLocal, actor)
}
