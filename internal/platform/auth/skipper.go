package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints (health probes, service info), the account
// bootstrap endpoints that run before the client holds a session, the
// websocket upgrade, which authenticates itself from a query token
// because browsers cannot set headers on websocket handshakes, and the
// prescription code check, which pharmacies call without an account.
// Keys are matched against c.Path(), so route patterns work.
var publicPaths = map[string]bool{
	"/":                                  true,
	"/health":                            true,
	"/ready":                             true,
	"/api/v1/ai/health":                  true,
	"/api/v1/auth/register":              true,
	"/api/v1/auth/verify":                true,
	"/api/v1/prescriptions/verify/:code": true,
	"/ws":                                true,
}

// AuthSkipper returns true for requests whose path should skip
// authentication. Pass it as the Skipper on JWTConfig so health checks
// and the websocket handshake stay reachable without a bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path bypasses auth middleware.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
