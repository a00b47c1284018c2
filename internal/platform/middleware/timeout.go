package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout sets a context deadline on each incoming request and answers
// 504 when the handler does not finish in time. The WebSocket endpoint is
// excluded; roster subscriptions are long-lived by design.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/ws") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					if !c.Response().Committed {
						return c.JSON(http.StatusGatewayTimeout, map[string]string{
							"message": "request processing exceeded the allowed time limit",
						})
					}
					return nil
				}
				return ctx.Err()
			}
		}
	}
}
