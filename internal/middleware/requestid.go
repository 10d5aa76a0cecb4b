package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	// LocalRequestID is the fiber Locals key the request identifier is
	// stored under for downstream handlers and the audit log.
	LocalRequestID = "request_id"
)

// RequestID assigns each request a stable identifier, honoring one supplied
// by the caller, and echoes it back on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(LocalRequestID, reqID)
		return c.Next()
	}
}
