package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORS allows the listed origins to call the JSON API. "*" allows any origin.
func CORS(origins []string) fiber.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				if allowAll {
					c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
				} else {
					c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
					c.Vary(fiber.HeaderOrigin)
				}
				c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
				c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, X-Request-ID")
				c.Set(fiber.HeaderAccessControlExposeHeaders, "X-Request-ID, X-RateLimit-Remaining")
				c.Set(fiber.HeaderAccessControlMaxAge, "86400")
			}
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
