package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"auditgate/internal/audit"
	"auditgate/internal/services"
)

// AuditHandler serves degree audit requests backed by the upstream client and
// the progress processor.
type AuditHandler struct {
	client       *audit.Client
	processor    *services.DegreeProgressProcessor
	requirements *services.RequirementsStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(client *audit.Client, processor *services.DegreeProgressProcessor, requirements *services.RequirementsStore) *AuditHandler {
	return &AuditHandler{
		client:       client,
		processor:    processor,
		requirements: requirements,
	}
}

// sessionCookies extracts the upstream session cookies from the request.
// X-Audit-Cookie takes priority so browser cookies for this service never
// leak upstream; the raw Cookie header is the fallback for direct API use.
func sessionCookies(c *fiber.Ctx) string {
	if v := c.Get("X-Audit-Cookie"); v != "" {
		return v
	}
	return c.Get(fiber.HeaderCookie)
}

// wantRefresh reports whether the caller asked to bypass the cache.
// Every audit endpoint honors ?refresh=true.
func wantRefresh(c *fiber.Ctx) bool {
	return c.QueryBool("refresh", false)
}

// Get fetches the degree audit, from cache when possible.
// GET /api/degree_audit?refresh=true
func (h *AuditHandler) Get(c *fiber.Ctx) error {
	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}
	return c.JSON(result)
}

// Progress returns the degree progress rollup.
// GET /api/degree_audit/progress
func (h *AuditHandler) Progress(c *fiber.Ctx) error {
	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}
	return c.JSON(h.processor.Progress(result))
}

// CompletedCourses returns every completed or in-progress course.
// GET /api/degree_audit/completed_courses
func (h *AuditHandler) CompletedCourses(c *fiber.Ctx) error {
	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}
	courses := h.processor.CompletedCourses(result)
	return c.JSON(fiber.Map{
		"count":   len(courses),
		"courses": courses,
	})
}

// EligibleCourses returns courses that can fulfill one subrequirement.
// GET /api/degree_audit/subrequirement/:subreqId/eligible_courses
func (h *AuditHandler) EligibleCourses(c *fiber.Ctx) error {
	subreqID := c.Params("subreqId")
	if subreqID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Subrequirement ID is required",
		})
	}

	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}

	sub, ok := h.processor.EligibleCoursesFor(result, subreqID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subrequirement not found: " + subreqID,
		})
	}
	return c.JSON(fiber.Map{
		"subrequirement_id": sub.ID,
		"title":             sub.Title,
		"required_units":    sub.RequiredUnits,
		"units_completed":   sub.UnitsCompleted,
		"units_remaining":   sub.UnitsRemaining,
		"status":            sub.Status,
		"eligible_courses":  sub.EligibleCourses,
		"category_groups":   sub.CategoryGroups,
	})
}

// NextCourses returns course recommendations for unmet subrequirements.
// GET /api/degree_audit/next_courses
func (h *AuditHandler) NextCourses(c *fiber.Ctx) error {
	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}
	recs := h.processor.NextCourses(result)
	return c.JSON(fiber.Map{
		"count":           len(recs),
		"recommendations": recs,
	})
}

// Requirements returns the per-requirement summary from the student's audit.
// GET /api/degree_audit/requirements
func (h *AuditHandler) Requirements(c *fiber.Ctx) error {
	result, err := h.client.GetOrCreateAudit(c.Context(), sessionCookies(c), wantRefresh(c))
	if err != nil {
		return auditErrorResponse(c, err)
	}

	summaries := h.processor.Summaries(result)
	requirements := make([]fiber.Map, 0, len(summaries))
	for _, s := range summaries {
		requirements = append(requirements, fiber.Map{
			"category":              s.Category,
			"name":                  s.Name,
			"status":                s.Status,
			"credits_required":      s.UnitsRequired,
			"credits_completed":     s.UnitsCompleted,
			"subrequirements_count": s.SubrequirementsCount,
		})
	}
	return c.JSON(fiber.Map{
		"count":        len(requirements),
		"requirements": requirements,
	})
}

// Catalog returns the static requirements catalog (colleges and majors).
// GET /api/requirements
func (h *AuditHandler) Catalog(c *fiber.Ctx) error {
	return c.JSON(h.requirements.Catalog())
}

// CacheStats reports audit cache counters.
// GET /api/degree_audit/cache_stats
func (h *AuditHandler) CacheStats(c *fiber.Ctx) error {
	return c.JSON(h.client.CacheStats())
}

// InvalidateCache drops every cached audit.
// POST /api/degree_audit/invalidate_cache
func (h *AuditHandler) InvalidateCache(c *fiber.Ctx) error {
	h.client.ClearCache()
	log.Printf("🗑️ [AUDIT] Audit cache cleared")
	return c.JSON(fiber.Map{
		"message": "Cache invalidated",
	})
}

// auditErrorResponse maps pipeline errors onto HTTP statuses. Auth problems
// are the caller's to fix (401); upstream overload and slowness map to the
// gateway statuses so clients can distinguish retry-later from re-login.
func auditErrorResponse(c *fiber.Ctx, err error) error {
	var (
		pollErr   *audit.PollTimeoutError
		cookieErr *audit.CookieFetchError
	)

	switch {
	case audit.NeedsReauth(err):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "Session expired - please re-authenticate",
			"details": err.Error(),
		})
	case errors.Is(err, audit.ErrCircuitBreakerOpen):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "Service temporarily unavailable due to repeated failures",
			"details": err.Error(),
		})
	case errors.As(err, &pollErr):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error":   "Audit generation timed out",
			"details": err.Error(),
		})
	case errors.As(err, &cookieErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Failed to fetch authentication cookies",
			"details": err.Error(),
		})
	default:
		log.Printf("❌ [AUDIT] Request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch degree audit",
			"details": err.Error(),
		})
	}
}
