// middleware/user_context.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware lifts the identity forwarded by the identity
// provider / gateway into request locals. The id is an opaque string;
// this service never inspects or issues credentials itself. Absence is
// not an error here: whether anonymous play is allowed is the session
// service's AuthPolicy decision, not a routing concern.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := c.Get("X-User-ID"); userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

// CurrentUserID reads the identity placed by UserContextMiddleware.
// nil means anonymous.
func CurrentUserID(c *fiber.Ctx) *string {
	if v, ok := c.Locals("user_id").(string); ok && v != "" {
		return &v
	}
	return nil
}
