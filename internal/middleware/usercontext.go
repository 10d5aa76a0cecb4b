package middleware

import (
	"github.com/gofiber/fiber/v2"
)

const (
	userIDHeader = "X-User-ID"

	// LocalUserID is the fiber Locals key the authenticated user id is
	// stored under.
	LocalUserID = "user_id"
)

// UserContext trusts the user identifier asserted by the upstream
// authentication layer and exposes it to handlers. Requests that reach this
// service without an identity are rejected; authenticating users is not this
// service's job.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(userIDHeader)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user identity")
		}
		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}
