package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one backing dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness and the state of the configured backends.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler returns a handler running checks on every request.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Register wires the health route.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
}

// Health is a simple endpoint so we know the service is running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := fiber.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "PowerLink",
		"status":  state,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"checks":  results,
	})
}
