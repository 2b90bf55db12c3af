package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightpress/internal/services"
	"nightpress/internal/store"
)

// HealthHandler reports liveness of the store and optional collaborators.
type HealthHandler struct {
	store store.Store
	redis *services.RedisService // may be nil
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(st store.Store, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{store: st, redis: redis}
}

// Health returns overall service health.
// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := fiber.StatusOK
	checks := fiber.Map{}

	if err := h.store.Ping(c.Context()); err != nil {
		checks["store"] = "down: " + err.Error()
		status = fiber.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Context()); err != nil {
			checks["redis"] = "down: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	overall := "healthy"
	if status != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
	})
}
