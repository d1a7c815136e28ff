package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	contextutil "gekoimport/internal/context"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTraceApp() *fiber.App {
	m := Middleware{}
	app := fiber.New()
	app.Use(m.TraceID())
	app.Get("/trace", func(c *fiber.Ctx) error {
		return c.SendString(GetTraceID(c))
	})
	app.Get("/trace/context", func(c *fiber.Ctx) error {
		traceID, _ := contextutil.GetTraceID(c.UserContext())
		return c.SendString(traceID)
	})
	return app
}

func readBody(t *testing.T, body io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return string(data)
}

func TestTraceID_GeneratesWhenMissing(t *testing.T) {
	resp, err := setupTraceApp().Test(httptest.NewRequest("GET", "/trace", nil))
	require.NoError(t, err)

	traceID := resp.Header.Get(TraceIDHeader)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, traceID, readBody(t, resp.Body))
}

func TestTraceID_PropagatesIncomingHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/trace", nil)
	req.Header.Set(TraceIDHeader, "trace-123")

	resp, err := setupTraceApp().Test(req)
	require.NoError(t, err)

	assert.Equal(t, "trace-123", resp.Header.Get(TraceIDHeader))
}

func TestTraceID_CarriedInUserContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/trace/context", nil)
	req.Header.Set(TraceIDHeader, "upload-42")

	resp, err := setupTraceApp().Test(req)
	require.NoError(t, err)

	assert.Equal(t, "upload-42", readBody(t, resp.Body))
}

func TestTraceID_ReplacesUnusableHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"too long", strings.Repeat("a", maxTraceIDLength+1)},
		{"contains space", "trace 123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/trace/context", nil)
			req.Header.Set(TraceIDHeader, tt.value)

			resp, err := setupTraceApp().Test(req)
			require.NoError(t, err)

			traceID := resp.Header.Get(TraceIDHeader)
			assert.NotEqual(t, tt.value, traceID)
			assert.Len(t, traceID, 36)
			assert.Equal(t, traceID, readBody(t, resp.Body))
		})
	}
}
