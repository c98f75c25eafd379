package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/database"
)

// Up is the liveness probe: an empty 200 while the process serves.
func Up(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health pings the database and answers "ok", or 503 when the database
// does not respond within two seconds.
func Health(db *database.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}
