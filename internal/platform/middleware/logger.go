package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
)

// probePaths are hit every few seconds by load balancers and uptime
// monitors; their request lines log at debug so they don't drown the
// clinical traffic.
var probePaths = map[string]bool{
	"/":                 true,
	"/health":           true,
	"/ready":            true,
	"/api/v1/ai/health": true,
}

// Logger returns middleware that emits one structured line per request.
// The acting user id is included when auth has resolved one; request
// bodies and query strings are never logged since symptom text and
// vitals are PHI.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			var evt *zerolog.Event
			switch {
			case err != nil:
				evt = logger.Error().Err(err)
			case probePaths[req.URL.Path]:
				evt = logger.Debug()
			default:
				evt = logger.Info()
			}

			if userID := auth.UserIDFromContext(req.Context()); userID != "" {
				evt = evt.Str("user_id", userID)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
