package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole restricts a route to users holding one of the given
// roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if role == RoleAdmin {
				return next(c)
			}
			if _, ok := allowed[role]; ok {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// RequireDoctor restricts a route to doctors (and admins).
func RequireDoctor() echo.MiddlewareFunc {
	return RequireRole(RoleDoctor)
}

// RequireAdmin restricts a route to admins only.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole()
}
