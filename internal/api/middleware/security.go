// Package middleware holds Echo middleware shared by the API routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for a JSON-only API. Responses under
// /api are never cached since they report live run state.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")

			if strings.HasPrefix(c.Request().URL.Path, "/api") {
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}
