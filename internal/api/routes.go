package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is anything that can report the health of a backing store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventsHealth reports whether the event backend is usable.
type EventsHealth interface {
	Healthy() bool
}

// RegisterRoutes registers all HTTP routes on the Fiber app. cookieKey is the
// base64 AES key the QuickBooks routes encrypt their cookies with.
func RegisterRoutes(app *fiber.App, st HealthChecker, events EventsHealth, qbo *QuickBooksHandler, cookieKey string) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"events": "ok",
			"store":  "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if events != nil && !events.Healthy() {
			checks["events"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// API routes
	QuickBooksRoutes(app.Group("/api/v1/quickbooks"), qbo, cookieKey)
}

// QuickBooksRoutes mounts the QuickBooks endpoints on r. Cookies are
// encrypted with AES-GCM, so a cookie the server did not issue decrypts to
// nothing and the caller is treated as not connected.
func QuickBooksRoutes(r fiber.Router, qbo *QuickBooksHandler, cookieKey string) {
	g := r.Use(encryptcookie.New(encryptcookie.Config{Key: cookieKey}))
	g.Get("/connect", qbo.ConnectHandler)
	g.Get("/callback", qbo.CallbackHandler)
	g.Get("/status", qbo.StatusHandler)
	g.Post("/test-connection", qbo.TestConnectionHandler)
	g.Post("/sync", qbo.SyncHandler)
	g.Get("/sync/latest", qbo.LatestSnapshotHandler)
	g.Post("/disconnect", qbo.DisconnectHandler)
}
