package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/telehostca/chatbot-backend/internal/config"
	"github.com/telehostca/chatbot-backend/internal/handlers"
	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/middleware"
	"github.com/telehostca/chatbot-backend/internal/services"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// Version is reported by / and /health
const Version = "1.0.0"

// NewApp creates the fiber app with the shared error handler and middleware
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Chatbot Backend v" + Version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, store storage.Store, engine *services.Engine, l *logger.Logger) {
	whatsapp := handlers.NewWhatsAppHandler(engine, l)
	health := handlers.NewHealthHandler(Version, cfg.Storage, engine.Channel().Name(), store)
	payments := handlers.NewPaymentHandler()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Chatbot Backend",
			"version": Version,
			"endpoints": fiber.Map{
				"health":        "/health",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
				"payments":      "/api/payments/validate-amount",
			},
		})
	})
	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	if cfg.Twilio.ValidateSignature && cfg.Twilio.AuthToken != "" {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.Server.PublicURL, l), whatsapp.HandleWebhook)
	} else {
		l.Warn("WhatsApp webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if cfg.Environment != "production" {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}

	// ========== OPERATOR ROUTES ==========
	api := app.Group("/api")
	api.Post("/payments/validate-amount", middleware.ValidateOperatorKey(cfg.Server.OperatorKey), payments.ValidateAmount)
}
