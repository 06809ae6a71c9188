package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	engine *services.Engine
	log    *logger.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(engine *services.Engine, l *logger.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		engine: engine,
		log:    l,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // whatsapp:+584141234567
	To         string `form:"To"`
	Body       string `form:"Body"`
	NumMedia   string `form:"NumMedia"`
}

// HandleWebhook processes incoming WhatsApp messages. Twilio only needs the 200; the reply
// goes out through the channel.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.log.Warnw("Error parsing webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// status callbacks carry no body
	if payload.Body == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	h.log.Infow("WhatsApp message received", "from", payload.From, "sid", payload.MessageSid)
	if _, err := h.engine.ProcessMessage(c.UserContext(), payload.From, payload.Body); err != nil {
		h.log.Errorw("Failed to deliver reply", "to", payload.From, "channel", h.engine.Channel().Name(), "error", err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is the development endpoint body
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook runs a turn and returns the reply in the response instead of sending it
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	response := h.engine.HandleMessage(c.UserContext(), payload.From, payload.Message)
	h.log.Debugw("Test response generated", "from", payload.From, "response", response)

	return c.JSON(fiber.Map{
		"success":  true,
		"response": response,
	})
}
