package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"

	"github.com/telehostca/chatbot-backend/internal/logger"
)

// TwilioSignatureHeader is set by Twilio on every webhook request
const TwilioSignatureHeader = "X-Twilio-Signature"

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// publicURL overrides the scheme and host seen by the server, for deployments behind a proxy.
func ValidateTwilioSignature(authToken, publicURL string, l *logger.Logger) fiber.Handler {
	validator := client.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		signature := c.Get(TwilioSignatureHeader)
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		url := requestURL(c, publicURL)
		if !validator.Validate(url, params, signature) {
			l.Warnw("Rejected webhook with invalid signature", "url", url, "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

// requestURL rebuilds the URL Twilio signed
func requestURL(c *fiber.Ctx, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/") + c.OriginalURL()
	}
	return c.Protocol() + "://" + c.Hostname() + c.OriginalURL()
}
