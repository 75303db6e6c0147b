package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		state  string
	}{
		{"no checks", nil, fiber.StatusOK, "ok"},
		{"all healthy", map[string]HealthCheck{"redis": healthy}, fiber.StatusOK, "ok"},
		{"one broken", map[string]HealthCheck{"redis": healthy, "postgres": broken}, fiber.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthHandler(tc.checks).Register(app)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tc.state, got.Status)
			assert.Len(t, got.Checks, len(tc.checks))
		})
	}
}
