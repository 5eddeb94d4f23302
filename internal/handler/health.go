package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-operations/internal/health"
)

// Health is a simple liveness endpoint used by load balancers to verify
// that the process is up.  It never consults the database.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports the result of the periodic database probe.  A degraded
// database yields 503 so orchestrators can route traffic elsewhere, but
// the process itself keeps serving realtime traffic.
func Ready(sup *health.Supervisor) echo.HandlerFunc {
    return func(c echo.Context) error {
        if !sup.Healthy() {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": "down"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "up"})
    }
}
