package middleware

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger emits one line per request. Simulation endpoints can run for
// seconds, so the duration is logged as-is rather than truncated to ms.
func RequestLogger() fiber.Handler {
	disabled := os.Getenv("REQUEST_LOGGING_DISABLED") == "1"
	shouldLog := !disabled && zerolog.GlobalLevel() <= zerolog.InfoLevel

	return func(c *fiber.Ctx) error {
		if !shouldLog {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		log.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Int("bytes_in", len(c.Body())).
			Int("bytes_out", len(c.Response().Body())).
			Msg("HTTP request")

		return err
	}
}
