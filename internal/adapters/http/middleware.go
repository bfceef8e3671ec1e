package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/tunnelwatch/internal/log"
	"github.com/melih/tunnelwatch/internal/metrics"
)

// RequestMetrics counts requests by matched route and status and logs them
// at debug level.
func RequestMetrics() fiber.Handler {
	logger := log.WithComponent("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := c.Route().Path
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logger.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
		return err
	}
}

// MetricsHandler exposes the Prometheus registry through fiber.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(metrics.Handler())
}
