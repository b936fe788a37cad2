package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finledger/api/pkg/response"
)

// GatewayAuthMiddleware trusts identity headers injected by an upstream
// gateway that already authenticated the request. The owner id header is
// mandatory; without it the request never reaches a handler.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := c.Get("X-User-Id")
		if ownerID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", ownerID)
		c.Locals("email", c.Get("X-User-Email"))

		return c.Next()
	}
}
