package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"auditgate/internal/audit"
	"auditgate/internal/database"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// HealthHandler handles health check requests.
type HealthHandler struct {
	client    *audit.Client
	db        *database.DB
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(client *audit.Client, db *database.DB) *HealthHandler {
	return &HealthHandler{client: client, db: db, startedAt: time.Now()}
}

// Handle responds with server health status.
// GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	dbStatus := "healthy"
	status := "healthy"
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			dbStatus = "unreachable"
			status = "degraded"
		}
	}

	return c.JSON(fiber.Map{
		"status":           status,
		"version":          Version,
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"database":         dbStatus,
		"breaker_failures": h.client.BreakerFailures(),
		"cache":            h.client.CacheStats(),
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// Root responds with service identification.
// GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "auditgate",
		"status":  "running",
	})
}
