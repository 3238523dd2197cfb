package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID("X-Request-ID"))
	app.Use(AccessLog(logger.NewNop()))
	app.Get("/echo", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})
	return app
}

func TestRequestID_PropagatesCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := newApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestRequestID_MintsWhenMissing(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest(http.MethodGet, "/echo", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}
