package http

import "github.com/gofiber/fiber/v2"

// NewApp builds the fiber application with all routes mounted.
func NewApp(h *TunnelHandler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(RequestMetrics())

	app.Get("/metrics", MetricsHandler())

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/", h.Info)
	v1.Get("/status", h.GetStatus)
	v1.Get("/health", h.GetHealth)
	v1.Post("/health", h.PostHealth)
	v1.Post("/start", h.Start)
	v1.Post("/stop", h.Stop)
	v1.Post("/replace", h.Replace)

	return app
}
