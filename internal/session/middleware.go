package session

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Middleware authenticates requests with a Bearer session token and places
// the parsed Session on the request context.
func Middleware(mgr *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			sess, err := mgr.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := WithSession(c.Request().Context(), sess)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireClinic rejects requests whose session has no active clinic. Most
// dashboard operations are clinic-scoped; the clinic is chosen right after
// login.
func RequireClinic() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := FromContext(c.Request().Context())
			if !ok || sess.ClinicID == "" {
				return echo.NewHTTPError(http.StatusForbidden, "no clinic selected")
			}
			return next(c)
		}
	}
}
