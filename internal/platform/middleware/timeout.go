package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout returns middleware that sets a context deadline on each
// incoming request. If the deadline is exceeded before the handler
// completes, the request context is cancelled and a 504 Gateway Timeout
// is returned.
//
// Websocket connections (paths starting with /ws) are excluded because
// they are long-lived by design. Handlers that legitimately need more
// time, such as AI calls with their own retry budget, derive their own
// deadline from the request context.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/ws") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			// Run handler in a goroutine so we can select on the context.
			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				// A handler that bails out on ctx.Done returns the
				// context error itself; report it as a timeout too.
				if errors.Is(err, context.DeadlineExceeded) {
					return timeoutError(c)
				}
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					return timeoutError(c)
				}
				// Other cancellation reasons (client disconnect).
				return ctx.Err()
			}
		}
	}
}

func timeoutError(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return echo.NewHTTPError(http.StatusGatewayTimeout,
		"Request processing exceeded the allowed time limit")
}
