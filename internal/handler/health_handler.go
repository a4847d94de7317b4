package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database reachability and the active notify driver.
type HealthHandler struct {
	pool     Pinger
	timeout  time.Duration
	notifier string
}

// NewHealthHandler creates a HealthHandler. timeout bounds the database ping.
func NewHealthHandler(pool Pinger, timeout time.Duration, notifier string) *HealthHandler {
	return &HealthHandler{pool: pool, timeout: timeout, notifier: notifier}
}

// Check handles GET /health.
// Returns 200 with {"status":"healthy"} when the database answers within the
// timeout and 503 with {"status":"unhealthy"} otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "down",
			"notifier": h.notifier,
			"error":    "database connection failed",
		})
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "up",
		"notifier": h.notifier,
	})
}
