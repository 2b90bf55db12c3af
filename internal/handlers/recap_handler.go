package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"nightpress/internal/services"
)

// RecapHandler exposes persisted session and day recaps.
type RecapHandler struct {
	sessions *services.SessionRecapService
	days     *services.DayRecapService
}

// NewRecapHandler creates a recap handler.
func NewRecapHandler(sessions *services.SessionRecapService, days *services.DayRecapService) *RecapHandler {
	return &RecapHandler{sessions: sessions, days: days}
}

// ListSessionRecaps returns session recaps, newest first.
// GET /api/recaps/sessions?author=&limit=
func (h *RecapHandler) ListSessionRecaps(c *fiber.Ctx) error {
	recaps, err := h.sessions.List(c.Context(), c.Query("author"), c.QueryInt("limit", 50))
	if err != nil {
		log.Printf("❌ Failed to list session recaps: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list session recaps",
		})
	}
	return c.JSON(fiber.Map{"recaps": recaps, "count": len(recaps)})
}

// ListDayRecaps returns day recaps, newest first.
// GET /api/recaps/days?limit=
func (h *RecapHandler) ListDayRecaps(c *fiber.Ctx) error {
	recaps, err := h.days.List(c.Context(), c.QueryInt("limit", 30))
	if err != nil {
		log.Printf("❌ Failed to list day recaps: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list day recaps",
		})
	}
	return c.JSON(fiber.Map{"recaps": recaps, "count": len(recaps)})
}

// GenerateDayRecap triggers recap generation for one past date.
// POST /api/recaps/days/:date/generate
func (h *RecapHandler) GenerateDayRecap(c *fiber.Ctx) error {
	date := c.Params("date")
	if err := h.days.GenerateFor(c.Context(), date); err != nil {
		if errors.Is(err, services.ErrFutureDate) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Only completed days can be recapped",
			})
		}
		log.Printf("❌ Failed to generate day recap for %s: %v", date, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate day recap",
		})
	}
	return c.JSON(fiber.Map{"date": date, "checked": true})
}
