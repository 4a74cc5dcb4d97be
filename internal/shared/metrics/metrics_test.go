package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ledgerEntries.WithLabelValues("spend"))
	RecordLedgerEntry("spend")
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerEntries.WithLabelValues("spend")))

	before = testutil.ToFloat64(resetAccounts.WithLabelValues("skipped"))
	RecordResetOutcome("skipped")
	assert.Equal(t, before+1, testutil.ToFloat64(resetAccounts.WithLabelValues("skipped")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", adaptor.HTTPHandler(Handler()))

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `credits_http_requests_total{method="GET",route="/ping",status="200"}`))
}
