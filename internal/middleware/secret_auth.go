package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireSecret accepts requests carrying secret as a Bearer token or in
// one of the extra headers. An empty secret rejects everything.
func RequireSecret(secret string, headers ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret != "" {
			if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok && matches(token, secret) {
				return c.Next()
			}
			for _, h := range headers {
				if matches(c.Get(h), secret) {
					return c.Next()
				}
			}
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}
}

func matches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
