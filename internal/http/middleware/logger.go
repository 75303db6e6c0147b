package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Logger creates a logging middleware using zap. Event streams are logged
// when they open; their latency is the life of the connection and says
// nothing useful.
func Logger(logger *zap.Logger) fiber.Handler {
	logger = logger.Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("ip", c.IP()),
		}
		if rid := RequestIDFrom(c); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		if err != nil {
			logger.Error("request error", append(fields, zap.Error(err))...)
			return err
		}

		if isEventStream(c) {
			logger.Debug("stream opened", fields...)
			return nil
		}

		fields = append(fields,
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)
		logger.Info("request", fields...)
		return nil
	}
}

func isEventStream(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Response().Header.ContentType()), "text/event-stream")
}
