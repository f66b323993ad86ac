package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/handlers"
	"github.com/Ananth-NQI/delivery-backend/internal/middleware"
)

// Handlers bundles everything the routes dispatch to
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
	Gatherer prometheus.Gatherer
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers, log *zap.Logger) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Delivery Bot",
			"endpoints": fiber.Map{
				"health":             "/health",
				"metrics":            "/metrics",
				"webhook":            "/webhook/whatsapp",
				"order_status":       "/api/orders/:id/status",
				"delivery_reminders": "/jobs/delivery-reminders",
			},
		})
	})

	app.Get("/health", h.Health.Check)
	if h.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	if cfg.Twilio.DisableValidation || (!cfg.IsProduction() && cfg.Twilio.AuthToken == "") {
		log.Warn("WhatsApp webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp",
			middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.Twilio.PublicURL, log),
			h.WhatsApp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if !cfg.IsProduction() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	api := app.Group("/api", middleware.RequireSecret(cfg.App.AdminAPISecret))
	api.Get("/orders/:id", h.Admin.GetOrder)
	api.Patch("/orders/:id/status", h.Admin.UpdateOrderStatus)

	// ========== JOB ROUTES ==========
	jobs := app.Group("/jobs", middleware.RequireSecret(cfg.Reminders.CronSecret, "X-Cron-Secret"))
	jobs.Get("/delivery-reminders", h.Admin.RunDeliveryReminders)
	jobs.Post("/delivery-reminders", h.Admin.RunDeliveryReminders)
}
