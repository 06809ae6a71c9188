package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is the storage liveness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Storage string
	Channel string
	store   Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storage, channel string, store Pinger) *HealthHandler {
	return &HealthHandler{
		Version: version,
		Storage: storage,
		Channel: channel,
		store:   store,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, code := "healthy", fiber.StatusOK
	storageStatus := "connected"
	if err := h.store.Ping(ctx); err != nil {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
		storageStatus = "error: " + err.Error()
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "Chatbot Backend",
		"version": h.Version,
		"services": fiber.Map{
			"storage":  fiber.Map{"type": h.Storage, "status": storageStatus},
			"whatsapp": h.Channel,
		},
	})
}
