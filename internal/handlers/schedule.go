package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"auditgate/internal/database"
	"auditgate/internal/models"
)

// ScheduleHandler serves the captured schedule-of-classes data.
type ScheduleHandler struct {
	store *database.ScheduleStore
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(store *database.ScheduleStore) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

// ReplaceSubject replaces every stored course under one subject.
// PUT /api/schedule/courses/:subject
func (h *ScheduleHandler) ReplaceSubject(c *fiber.Ctx) error {
	subject := strings.ToUpper(c.Params("subject"))
	if subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Subject code is required",
		})
	}

	var courses []models.Course
	if err := c.BodyParser(&courses); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	count, err := h.store.ReplaceSubject(c.Context(), subject, courses)
	if err != nil {
		log.Printf("❌ [SCHEDULE] Failed to replace subject %s: %v", subject, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to store courses",
			"details": err.Error(),
		})
	}

	log.Printf("✅ [SCHEDULE] Replaced subject %s with %d courses", subject, count)
	return c.JSON(fiber.Map{
		"subject": subject,
		"courses": count,
	})
}

// Courses lists stored courses, filtered by subject when given. Without a
// subject filter, only the list of available subjects is returned.
// GET /api/schedule/courses?subject=CSE
func (h *ScheduleHandler) Courses(c *fiber.Ctx) error {
	subject := strings.ToUpper(c.Query("subject"))

	if subject == "" {
		subjects, err := h.store.Subjects(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to list subjects",
				"details": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"subjects": subjects,
		})
	}

	courses, err := h.store.CoursesBySubject(c.Context(), subject)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to load courses",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"subject": subject,
		"count":   len(courses),
		"courses": courses,
	})
}

// Stats reports schedule table row counts.
// GET /api/schedule/stats
func (h *ScheduleHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read schedule stats",
			"details": err.Error(),
		})
	}
	return c.JSON(stats)
}
