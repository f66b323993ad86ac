package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Storage string
	db      *sql.DB
}

// NewHealthHandler creates a new health handler. db may be nil when the
// in-memory store is in use.
func NewHealthHandler(version, storageType string, db *sql.DB) *HealthHandler {
	return &HealthHandler{
		Version: version,
		Storage: storageType,
		db:      db,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":  "healthy",
		"service": "Delivery Bot",
		"version": h.Version,
		"storage": h.Storage,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		status["database"] = "ok"
	}

	return c.JSON(status)
}
