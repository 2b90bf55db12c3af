package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"nightpress/internal/middleware"
	"nightpress/internal/models"
	"nightpress/internal/services"
	"nightpress/internal/store"
)

// RecordHandler exposes the staged publication engine over HTTP.
type RecordHandler struct {
	records *services.RecordService
}

// NewRecordHandler creates a record handler.
func NewRecordHandler(records *services.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

type createRecordRequest struct {
	Body         string   `json:"body"`
	Recipients   []string `json:"recipients,omitempty"`
	Reflection   bool     `json:"reflection,omitempty"`
	Visibility   string   `json:"visibility,omitempty"`
	StageDelayMs int64    `json:"stage_delay_ms,omitempty"`
}

// CreateEntry stages a new entry.
// POST /api/entries
func (h *RecordHandler) CreateEntry(c *fiber.Ctx) error {
	return h.create(c, models.RecordKindEntry)
}

// CreateConversation stages a new conversation.
// POST /api/conversations
func (h *RecordHandler) CreateConversation(c *fiber.Ctx) error {
	return h.create(c, models.RecordKindConversation)
}

func (h *RecordHandler) create(c *fiber.Ctx, kind models.RecordKind) error {
	authorID := middleware.AuthorID(c)
	if authorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req createRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Record body is required",
		})
	}

	input := services.CreateRecordInput{
		AuthorID:     authorID,
		AuthorHandle: middleware.AuthorHandle(c),
		Body:         req.Body,
		Recipients:   req.Recipients,
		Reflection:   req.Reflection,
		Visibility:   models.Visibility(req.Visibility),
		StageDelayMs: req.StageDelayMs,
	}

	var rec *models.Record
	var err error
	if kind == models.RecordKindConversation {
		rec, err = h.records.CreateConversation(c.Context(), input)
	} else {
		rec, err = h.records.CreateEntry(c.Context(), input)
	}
	if err != nil {
		log.Printf("❌ Failed to stage %s: %v", kind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to stage record",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                   rec.ID,
		"scheduled_publish_at": rec.ScheduledPublishAt,
	})
}

// ListPublished returns published records, optionally filtered.
// GET /api/records?kind=&author=&since=&until=&limit=
func (h *RecordHandler) ListPublished(c *fiber.Ctx) error {
	filter := store.RecordFilter{
		Kind:     models.RecordKind(c.Query("kind")),
		AuthorID: c.Query("author"),
		Limit:    c.QueryInt("limit", 100),
	}
	if since := c.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid 'since' timestamp (RFC3339 expected)",
			})
		}
		filter.Since = ts
	}
	if until := c.Query("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid 'until' timestamp (RFC3339 expected)",
			})
		}
		filter.Until = ts
	}

	recs, err := h.records.ListPublished(c.Context(), filter)
	if err != nil {
		log.Printf("❌ Failed to list published records: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list records",
		})
	}
	return c.JSON(fiber.Map{"records": recs, "count": len(recs)})
}

// ListPending returns the caller's not-yet-published records.
// GET /api/records/pending
func (h *RecordHandler) ListPending(c *fiber.Ctx) error {
	authorID := middleware.AuthorID(c)
	if authorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	recs, err := h.records.ListPendingForAuthor(c.Context(), authorID)
	if err != nil {
		log.Printf("❌ Failed to list pending records: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list pending records",
		})
	}
	return c.JSON(fiber.Map{"records": recs, "count": len(recs)})
}

// ForcePublish publishes the caller's pending record immediately.
// POST /api/records/:id/publish
func (h *RecordHandler) ForcePublish(c *fiber.Ctx) error {
	authorID := middleware.AuthorID(c)
	if authorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	rec, err := h.records.ForcePublish(c.Context(), c.Params("id"), authorID)
	if err != nil {
		return recordError(c, err)
	}
	return c.JSON(rec)
}

// Delete tombstones the caller's record.
// DELETE /api/records/:id
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	authorID := middleware.AuthorID(c)
	if authorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	if err := h.records.Delete(c.Context(), c.Params("id"), authorID); err != nil {
		return recordError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// recordError maps the engine's error taxonomy to HTTP responses.
func recordError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Record not found",
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Record belongs to another author",
		})
	case errors.Is(err, services.ErrNotPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Record is no longer pending",
		})
	default:
		log.Printf("❌ Record operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
		})
	}
}
