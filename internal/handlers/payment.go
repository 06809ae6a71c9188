package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telehostca/chatbot-backend/internal/services"
)

// PaymentHandler serves the operator payment tools
type PaymentHandler struct{}

func NewPaymentHandler() *PaymentHandler {
	return &PaymentHandler{}
}

type validateAmountRequest struct {
	Expected *float64 `json:"expected"`
	Paid     *float64 `json:"paid"`
}

// ValidateAmount checks a reported payment against the order total with the 5% tolerance
func (h *PaymentHandler) ValidateAmount(c *fiber.Ctx) error {
	var req validateAmountRequest
	if err := c.BodyParser(&req); err != nil || req.Expected == nil || req.Paid == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expected and paid are required",
		})
	}
	if *req.Expected < 0 || *req.Paid < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "amounts must not be negative",
		})
	}
	return c.JSON(services.ValidatePaymentAmount(*req.Expected, *req.Paid))
}
