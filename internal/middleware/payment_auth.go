package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// OperatorKeyHeader carries the key for the operator payment endpoints
const OperatorKeyHeader = "X-API-Key"

// ValidateOperatorKey guards the operator payment tools. An empty key leaves them open.
func ValidateOperatorKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		got := c.Get(OperatorKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}
		return c.Next()
	}
}
