package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Health returns a liveness handler for load balancers.  Every check
// must pass for a 200 "ok"; the first failure answers 503.
func Health(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
